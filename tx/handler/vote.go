package handler

import (
	"context"
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/council-app/engine"
	"github.com/calehh/council-app/tx"
)

type CastVoteTxHandler struct {
	logger cmtlog.Logger
}

func NewCastVoteTxHandler(logger cmtlog.Logger) (h *CastVoteTxHandler) {
	h = &CastVoteTxHandler{
		logger: logger.With("module", "castVoteTx"),
	}
	return
}

func (h *CastVoteTxHandler) Check(ctx context.Context, btx *tx.CouncilTx) error {
	wtx := btx.Tx.(*tx.CastVoteTx)
	if len(wtx.Choice) == 0 {
		return fmt.Errorf("choice: %w", ErrEmptyField)
	}
	if len(wtx.Proof) == 0 {
		return fmt.Errorf("proof: %w", ErrEmptyField)
	}
	return nil
}

func (h *CastVoteTxHandler) Process(ctx context.Context, eng *engine.Engine, btx *tx.CouncilTx) (res *abcitypes.ExecTxResult, err error) {
	wtx := btx.Tx.(*tx.CastVoteTx)
	vote, err := eng.CastVote(ctx, wtx.Resolution, btx.Sender(), wtx.Choice, wtx.Proof)
	if err != nil {
		return nil, err
	}
	return result(vote.Events()...), nil
}
