package main

import "github.com/spf13/cobra"

const (
	FlagOverwrite = "overwrite"
	FlagChainID   = "chain-id"
	FlagHome      = "home"
	FlagMember    = "member"
)

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.PersistentFlags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "council node rpc url")
}

func keyFlag(cmd *cobra.Command, path *string) {
	cmd.PersistentFlags().StringVarP(path, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
}
