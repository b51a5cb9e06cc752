package app

import (
	"context"
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/calehh/council-app/engine"
	"github.com/calehh/council-app/tx"
)

func (app *CouncilApp) parseTx(txDat []byte) (btx *tx.CouncilTx, err error) {
	btx, err = tx.UnmarshalTx(txDat)
	if err != nil {
		return
	}
	if err = btx.Verify(app.chainId); err != nil {
		return nil, err
	}
	if _, ok := app.txHdlrs[btx.Type]; !ok {
		return nil, fmt.Errorf("%w: %v", tx.ErrUnsupportedTxType, btx.Type)
	}
	return
}

// checkNonce accepts exactly the next nonce, or any later one when allowNonceGap is set so
// the mempool can hold a sender's queued txs.
func (app *CouncilApp) checkNonce(btx *tx.CouncilTx, allowNonceGap bool) error {
	nonce, err := app.store.Nonce(btx.Sender())
	if err != nil {
		return err
	}
	if btx.Nonce < nonce || (!allowNonceGap && btx.Nonce != nonce) {
		return fmt.Errorf("%w: want %d, got %d", tx.ErrTxNonceInvalid, nonce, btx.Nonce)
	}
	return nil
}

// admit keeps txs that only one identity may send out of the mempool. Decryption results
// come from the gateway alone.
func (app *CouncilApp) admit(btx *tx.CouncilTx) error {
	if btx.Type != tx.TxTypeDecryptionResult {
		return nil
	}
	params, err := app.store.Params()
	if err != nil {
		return err
	}
	if btx.Sender() != params.Gateway {
		return engine.ErrNotGateway
	}
	return nil
}

func (app *CouncilApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: CodeOK}
	btx, err := app.parseTx(check.Tx)
	if err == nil {
		err = app.checkNonce(btx, true)
	}
	if err == nil {
		err = app.admit(btx)
	}
	if err == nil {
		err = app.txHdlrs[btx.Type].Check(ctx, btx)
	}
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res.Code = ErrorCode(err)
		res.Log = err.Error()
		return res, nil
	}
	app.logger.Debug("check tx", "type", btx.Type, "sender", btx.Sender(), "nonce", btx.Nonce)
	return
}

// PrepareProposal drops txs that can never execute and keeps the block under MaxTxBytes.
func (app *CouncilApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		if _, err := app.parseTx(stx); err != nil {
			app.logger.Error("drop unparsable tx", "err", err)
			continue
		}
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *CouncilApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	for _, stx := range proposal.Txs {
		if _, err := app.parseTx(stx); err != nil {
			app.logger.Error("reject proposal", "height", proposal.Height, "err", err)
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

// deliverTx runs one tx. A correctly signed tx with the expected nonce consumes its nonce
// even when the engine rejects it; a rejected tx changes nothing else.
func (app *CouncilApp) deliverTx(ctx context.Context, stx []byte) *abcitypes.ExecTxResult {
	btx, err := app.parseTx(stx)
	if err != nil {
		return errResult(err)
	}
	if err = app.checkNonce(btx, false); err != nil {
		return errResult(err)
	}
	sender := btx.Sender()
	if _, err = app.store.IncNonce(sender); err != nil {
		return errResult(err)
	}
	h := app.txHdlrs[btx.Type]
	if err = h.Check(ctx, btx); err != nil {
		return errResult(err)
	}
	res, err := h.Process(ctx, app.engine, btx)
	if err != nil {
		app.logger.Info("tx rejected", "type", btx.Type, "sender", sender, "err", err)
		return errResult(err)
	}
	return res
}

func errResult(err error) *abcitypes.ExecTxResult {
	return &abcitypes.ExecTxResult{
		Code: ErrorCode(err),
		Log:  err.Error(),
	}
}

func (app *CouncilApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	app.clock.Set(req.Time)
	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		res[i] = app.deliverTx(ctx, stx)
	}
	h := app.store.WorkingHash()
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

// Commit persists the block's state, then releases the decryption requests it raised.
func (app *CouncilApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	h, version, err := app.store.Commit()
	if err != nil {
		return nil, err
	}
	app.logger.Info("Commit", "height", version, "hash", h)
	if err = app.outbox.Flush(ctx); err != nil {
		app.logger.Error("flush decryption requests fail", "err", err)
	}
	return &abcitypes.ResponseCommit{}, nil
}
