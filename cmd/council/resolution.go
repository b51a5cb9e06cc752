package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/calehh/council-app/tx"
)

type createResolutionArguments struct {
	Description string
	Quorum      uint64
}

var createResolutionArgs createResolutionArguments

var resolutionCmd = &cobra.Command{
	Use:   "resolution",
	Short: "Create, close and requeue resolutions",
}

var resolutionCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Open a resolution for voting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTx(cmd, tx.TxTypeCreateResolution, &tx.CreateResolutionTx{
			Title:          args[0],
			Description:    createResolutionArgs.Description,
			RequiredQuorum: createResolutionArgs.Quorum,
		})
	},
}

var resolutionCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close voting and request decryption of the tallies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseResolutionId(args[0])
		if err != nil {
			return err
		}
		return sendTx(cmd, tx.TxTypeCloseResolution, &tx.CloseResolutionTx{Resolution: id})
	},
}

var resolutionRequeueCmd = &cobra.Command{
	Use:   "requeue <id>",
	Short: "Request decryption again after the gateway missed its deadline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseResolutionId(args[0])
		if err != nil {
			return err
		}
		return sendTx(cmd, tx.TxTypeRequeueDecryption, &tx.RequeueDecryptionTx{Resolution: id})
	},
}

func init() {
	txFlags(resolutionCmd)
	resolutionCreateCmd.Flags().StringVarP(&createResolutionArgs.Description, "description", "", "", "resolution description")
	resolutionCreateCmd.Flags().Uint64VarP(&createResolutionArgs.Quorum, "quorum", "q", 0, "required quorum in vote weight")
	resolutionCmd.AddCommand(resolutionCreateCmd, resolutionCloseCmd, resolutionRequeueCmd)
}

func parseResolutionId(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid resolution id %q: %w", s, err)
	}
	return id, nil
}
