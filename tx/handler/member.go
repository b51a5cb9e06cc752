package handler

import (
	"context"
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/council-app/engine"
	"github.com/calehh/council-app/state"
	"github.com/calehh/council-app/tx"
	"github.com/calehh/council-app/types"
)

type UpsertMemberTxHandler struct {
	logger cmtlog.Logger
}

func NewUpsertMemberTxHandler(logger cmtlog.Logger) (h *UpsertMemberTxHandler) {
	h = &UpsertMemberTxHandler{
		logger: logger.With("module", "upsertMemberTx"),
	}
	return
}

func (h *UpsertMemberTxHandler) Check(ctx context.Context, btx *tx.CouncilTx) error {
	wtx := btx.Tx.(*tx.UpsertMemberTx)
	if wtx.Member == "" {
		return fmt.Errorf("member: %w", ErrEmptyField)
	}
	if wtx.Weight == 0 {
		return state.ErrInvalidWeight
	}
	return nil
}

func (h *UpsertMemberTxHandler) Process(ctx context.Context, eng *engine.Engine, btx *tx.CouncilTx) (res *abcitypes.ExecTxResult, err error) {
	wtx := btx.Tx.(*tx.UpsertMemberTx)
	event, err := eng.UpsertMember(ctx, btx.Sender(), wtx.Member, wtx.Name, wtx.Role, wtx.Weight)
	if err != nil {
		return nil, err
	}
	return result(types.EncodeEventMemberUpdated(event)), nil
}

type RemoveMemberTxHandler struct {
	logger cmtlog.Logger
}

func NewRemoveMemberTxHandler(logger cmtlog.Logger) (h *RemoveMemberTxHandler) {
	h = &RemoveMemberTxHandler{
		logger: logger.With("module", "removeMemberTx"),
	}
	return
}

func (h *RemoveMemberTxHandler) Check(ctx context.Context, btx *tx.CouncilTx) error {
	if btx.Tx.(*tx.RemoveMemberTx).Member == "" {
		return fmt.Errorf("member: %w", ErrEmptyField)
	}
	return nil
}

func (h *RemoveMemberTxHandler) Process(ctx context.Context, eng *engine.Engine, btx *tx.CouncilTx) (res *abcitypes.ExecTxResult, err error) {
	wtx := btx.Tx.(*tx.RemoveMemberTx)
	event, err := eng.RemoveMember(ctx, btx.Sender(), wtx.Member)
	if err != nil {
		return nil, err
	}
	return result(types.EncodeEventMemberUpdated(event)), nil
}
