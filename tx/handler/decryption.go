package handler

import (
	"context"
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/council-app/engine"
	"github.com/calehh/council-app/tx"
	"github.com/calehh/council-app/types"
)

// DecryptionResultTxHandler is the on-chain entry of the gateway callback. The sender must be
// the gateway identity recorded in params.
type DecryptionResultTxHandler struct {
	logger cmtlog.Logger
}

func NewDecryptionResultTxHandler(logger cmtlog.Logger) (h *DecryptionResultTxHandler) {
	h = &DecryptionResultTxHandler{
		logger: logger.With("module", "decryptionResultTx"),
	}
	return
}

func (h *DecryptionResultTxHandler) Check(ctx context.Context, btx *tx.CouncilTx) error {
	wtx := btx.Tx.(*tx.DecryptionResultTx)
	if len(wtx.Plaintexts) != 2 {
		return fmt.Errorf("%w: want 2, got %d", engine.ErrBadPlaintexts, len(wtx.Plaintexts))
	}
	return nil
}

func (h *DecryptionResultTxHandler) Process(ctx context.Context, eng *engine.Engine, btx *tx.CouncilTx) (res *abcitypes.ExecTxResult, err error) {
	wtx := btx.Tx.(*tx.DecryptionResultTx)
	event, err := eng.Finalize(ctx, btx.Sender(), wtx.Correlation, wtx.Plaintexts)
	if err != nil {
		return nil, err
	}
	h.logger.Info("decryption result applied", "resolution", wtx.Correlation, "passed", event.Passed)
	return result(types.EncodeEventResolutionFinalized(event)), nil
}
