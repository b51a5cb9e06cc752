package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calehh/council-app/crypto"
	"github.com/calehh/council-app/fhe"
	"github.com/calehh/council-app/tx"
)

type voteArguments struct {
	ComputeKey string
}

var voteArgs voteArguments

var voteCmd = &cobra.Command{
	Use:   "vote <resolution> <yes|no>",
	Short: "Cast an encrypted ballot on an open resolution",
	Long: `Cast an encrypted ballot. The choice is sealed under the compute key and bound to
the council contract and the signing address, so the ballot cannot be replayed by
another member.`,
	Args: cobra.ExactArgs(2),
	RunE: voteRun,
}

func init() {
	txFlags(voteCmd)
	voteCmd.Flags().StringVarP(&voteArgs.ComputeKey, "compute-key", "k", "", "hex compute key, the development key when empty")
}

func parseChoice(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid choice %q, expected yes or no", s)
}

func voteRun(cmd *cobra.Command, args []string) error {
	id, err := parseResolutionId(args[0])
	if err != nil {
		return err
	}
	yes, err := parseChoice(args[1])
	if err != nil {
		return err
	}
	key, err := fhe.ParseKey(voteArgs.ComputeKey)
	if err != nil {
		return err
	}
	pv, err := crypto.LoadFilePV(txArgs.Skey)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	params, err := queryParams(ctx, txArgs.Url)
	if err != nil {
		return err
	}
	choice, proof, err := fhe.SealBool(key, yes, fhe.Binding{Contract: params.Contract, Identity: pv.Address()})
	if err != nil {
		return err
	}
	return sendTx(cmd, tx.TxTypeCastVote, &tx.CastVoteTx{
		Resolution: id,
		Choice:     choice,
		Proof:      proof,
	})
}
