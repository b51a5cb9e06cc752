package handler

import (
	"context"
	"errors"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/council-app/engine"
	"github.com/calehh/council-app/tx"
)

var ErrEmptyField = errors.New("required field is empty")

// TxHandler executes one tx type. Check only inspects the payload; Process runs it against
// the engine.
type TxHandler interface {
	Check(ctx context.Context, btx *tx.CouncilTx) error
	Process(ctx context.Context, eng *engine.Engine, btx *tx.CouncilTx) (res *abcitypes.ExecTxResult, err error)
}

func NewTxHandlers(logger cmtlog.Logger) map[tx.CouncilTxType]TxHandler {
	return map[tx.CouncilTxType]TxHandler{
		tx.TxTypeUpsertMember:      NewUpsertMemberTxHandler(logger),
		tx.TxTypeRemoveMember:      NewRemoveMemberTxHandler(logger),
		tx.TxTypeCreateResolution:  NewCreateResolutionTxHandler(logger),
		tx.TxTypeCastVote:          NewCastVoteTxHandler(logger),
		tx.TxTypeCloseResolution:   NewCloseResolutionTxHandler(logger),
		tx.TxTypeDecryptionResult:  NewDecryptionResultTxHandler(logger),
		tx.TxTypeRequeueDecryption: NewRequeueDecryptionTxHandler(logger),
	}
}

func result(events ...abcitypes.Event) *abcitypes.ExecTxResult {
	return &abcitypes.ExecTxResult{Events: events}
}
