package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calehh/council-app/crypto"
)

type keysArguments struct {
	Skey string
}

var keysArgs keysArguments

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage signing keys",
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the public key and address of a key file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pv, err := crypto.LoadFilePV(keysArgs.Skey)
		if err != nil {
			return err
		}
		printKey(pv)
		return nil
	},
}

var keysGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Create a key file if it does not exist and print its address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pv, err := crypto.LoadOrGenFilePV(keysArgs.Skey)
		if err != nil {
			return err
		}
		printKey(pv)
		return nil
	},
}

func init() {
	keyFlag(keysCmd, &keysArgs.Skey)
	keysCmd.AddCommand(keysShowCmd, keysGenCmd)
}

func printKey(pv *crypto.PV) {
	fmt.Println("pubkey:", hex.EncodeToString(pv.PublicKey()))
	fmt.Println("address:", pv.Address())
}
