package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/council-app/engine"
	"github.com/calehh/council-app/state"
	"github.com/calehh/council-app/tx"
	"github.com/calehh/council-app/types"
)

type CreateResolutionTxHandler struct {
	logger cmtlog.Logger
}

func NewCreateResolutionTxHandler(logger cmtlog.Logger) (h *CreateResolutionTxHandler) {
	h = &CreateResolutionTxHandler{
		logger: logger.With("module", "createResolutionTx"),
	}
	return
}

func (h *CreateResolutionTxHandler) Check(ctx context.Context, btx *tx.CouncilTx) error {
	if btx.Tx.(*tx.CreateResolutionTx).RequiredQuorum == 0 {
		return state.ErrQuorumOutOfRange
	}
	return nil
}

func (h *CreateResolutionTxHandler) Process(ctx context.Context, eng *engine.Engine, btx *tx.CouncilTx) (res *abcitypes.ExecTxResult, err error) {
	wtx := btx.Tx.(*tx.CreateResolutionTx)
	created, err := eng.CreateResolution(ctx, btx.Sender(), wtx.Title, wtx.Description, wtx.RequiredQuorum)
	if err != nil {
		return nil, err
	}
	return result(created.Events()...), nil
}

type CloseResolutionTxHandler struct {
	logger cmtlog.Logger
}

func NewCloseResolutionTxHandler(logger cmtlog.Logger) (h *CloseResolutionTxHandler) {
	h = &CloseResolutionTxHandler{
		logger: logger.With("module", "closeResolutionTx"),
	}
	return
}

func (h *CloseResolutionTxHandler) Check(ctx context.Context, btx *tx.CouncilTx) error {
	return nil
}

func (h *CloseResolutionTxHandler) Process(ctx context.Context, eng *engine.Engine, btx *tx.CouncilTx) (res *abcitypes.ExecTxResult, err error) {
	wtx := btx.Tx.(*tx.CloseResolutionTx)
	event, err := eng.CloseResolution(ctx, wtx.Resolution, btx.Sender())
	if err != nil {
		return nil, err
	}
	return result(types.EncodeEventResolutionClosed(event)), nil
}

type RequeueDecryptionTxHandler struct {
	logger cmtlog.Logger
}

func NewRequeueDecryptionTxHandler(logger cmtlog.Logger) (h *RequeueDecryptionTxHandler) {
	h = &RequeueDecryptionTxHandler{
		logger: logger.With("module", "requeueDecryptionTx"),
	}
	return
}

func (h *RequeueDecryptionTxHandler) Check(ctx context.Context, btx *tx.CouncilTx) error {
	return nil
}

func (h *RequeueDecryptionTxHandler) Process(ctx context.Context, eng *engine.Engine, btx *tx.CouncilTx) (res *abcitypes.ExecTxResult, err error) {
	wtx := btx.Tx.(*tx.RequeueDecryptionTx)
	event, err := eng.RequeueDecryption(ctx, wtx.Resolution, btx.Sender())
	if err != nil {
		return nil, err
	}
	return result(types.EncodeEventResolutionClosed(event)), nil
}
