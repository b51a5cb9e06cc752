package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"

	"github.com/calehh/council-app/types"
)

type queryArguments struct {
	Url string
}

var queryArgs queryArguments

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query council state from a node",
}

var queryMemberCmd = &cobra.Command{
	Use:   "member [address]",
	Short: "Show one member, or every registered member",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dat []byte
		if len(args) == 1 {
			dat = []byte(strings.ToUpper(args[0]))
		}
		return printQuery(cmd.Context(), queryArgs.Url, "/members/", dat)
	},
}

var queryResolutionCmd = &cobra.Command{
	Use:   "resolution [id]",
	Short: "Show one resolution, or every resolution",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dat []byte
		if len(args) == 1 {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid resolution id %q: %w", args[0], err)
			}
			dat = encodeIndex(id)
		}
		return printQuery(cmd.Context(), queryArgs.Url, "/resolutions/", dat)
	},
}

var queryTotalWeightCmd = &cobra.Command{
	Use:   "totalweight",
	Short: "Show the total weight of active members",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printQuery(cmd.Context(), queryArgs.Url, "/totalweight/", nil)
	},
}

var queryCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of resolutions created",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printQuery(cmd.Context(), queryArgs.Url, "/resolutioncount/", nil)
	},
}

var queryNonceCmd = &cobra.Command{
	Use:   "nonce <address>",
	Short: "Show the next tx nonce of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printQuery(cmd.Context(), queryArgs.Url, "/nonce/", []byte(strings.ToUpper(args[0])))
	},
}

var queryParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "Show the chain parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printQuery(cmd.Context(), queryArgs.Url, "/params/", nil)
	},
}

func init() {
	urlFlag(queryCmd, &queryArgs.Url)
	queryCmd.AddCommand(queryMemberCmd, queryResolutionCmd, queryTotalWeightCmd, queryCountCmd, queryNonceCmd, queryParamsCmd)
}

func encodeIndex(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func abciQuery(ctx context.Context, url, path string, dat []byte) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cli, err := http.New(url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client err: %w", err)
	}
	res, err := cli.ABCIQuery(ctx, path, dat)
	if err != nil {
		return nil, fmt.Errorf("request err: %w", err)
	}
	if res.Response.Code != 0 {
		return nil, fmt.Errorf("query %s: code %d: %s", path, res.Response.Code, res.Response.Log)
	}
	return res.Response.Value, nil
}

func printQuery(ctx context.Context, url, path string, dat []byte) error {
	value, err := abciQuery(ctx, url, path, dat)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err = json.Indent(&out, value, "", "  "); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}

func queryParams(ctx context.Context, url string) (*types.Params, error) {
	value, err := abciQuery(ctx, url, "/params/", nil)
	if err != nil {
		return nil, err
	}
	var p types.Params
	if err = json.Unmarshal(value, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
