package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"

	"github.com/calehh/council-app/crypto"
	"github.com/calehh/council-app/tx"
)

type txArguments struct {
	Url  string
	Skey string
}

var txArgs txArguments

// txFlags binds the node url and signing key flags shared by every tx command group.
func txFlags(cmd *cobra.Command) {
	urlFlag(cmd, &txArgs.Url)
	keyFlag(cmd, &txArgs.Skey)
}

func newTxClient(ctx context.Context) (*tx.Client, error) {
	cli, err := http.New(txArgs.Url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client err: %w", err)
	}
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain genesis err: %w", err)
	}
	pv, err := crypto.LoadFilePV(txArgs.Skey)
	if err != nil {
		return nil, err
	}
	logger := cmtlog.NewFilter(cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stderr)), cmtlog.AllowInfo())
	return tx.NewClient(txArgs.Url, gres.Genesis.ChainID, pv.PrivKey(), logger)
}

// sendTx signs payload with the configured key and prints the CheckTx result.
func sendTx(cmd *cobra.Command, tp tx.CouncilTxType, payload any) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cli, err := newTxClient(ctx)
	if err != nil {
		return err
	}
	res, err := cli.Send(ctx, tp, payload)
	if err != nil {
		return err
	}
	dat, _ := json.Marshal(res)
	fmt.Printf("%v\n", string(dat))
	return nil
}
