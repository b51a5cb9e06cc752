package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calehh/council-app/tx"
)

type upsertMemberArguments struct {
	Name string
	Role string
}

var upsertMemberArgs upsertMemberArguments

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Register, update and remove members",
}

var memberUpsertCmd = &cobra.Command{
	Use:   "upsert <address> <weight>",
	Short: "Register a member or change its weight, name and role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		weight, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid weight %q: %w", args[1], err)
		}
		return sendTx(cmd, tx.TxTypeUpsertMember, &tx.UpsertMemberTx{
			Member: strings.ToUpper(args[0]),
			Weight: weight,
			Name:   upsertMemberArgs.Name,
			Role:   upsertMemberArgs.Role,
		})
	},
}

var memberRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Deactivate a member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTx(cmd, tx.TxTypeRemoveMember, &tx.RemoveMemberTx{Member: strings.ToUpper(args[0])})
	},
}

func init() {
	txFlags(memberCmd)
	memberUpsertCmd.Flags().StringVarP(&upsertMemberArgs.Name, "name", "", "", "member display name")
	memberUpsertCmd.Flags().StringVarP(&upsertMemberArgs.Role, "role", "", "", "member role")
	memberCmd.AddCommand(memberUpsertCmd, memberRemoveCmd)
}
