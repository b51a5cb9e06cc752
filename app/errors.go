package app

import (
	"errors"

	"github.com/calehh/council-app/engine"
	"github.com/calehh/council-app/fhe"
	"github.com/calehh/council-app/state"
	"github.com/calehh/council-app/tx"
	"github.com/calehh/council-app/tx/handler"
)

// Result codes of CheckTx and FinalizeBlock. They are part of the wire contract; append only.
const (
	CodeOK uint32 = iota
	CodeInvalidTx
	CodeUnsupportedTx
	CodeInvalidSignature
	CodeInvalidNonce
	CodeEmptyField
	CodeInvalidWeight
	CodeNotAMember
	CodeCannotRemoveSelf
	CodeQuorumOutOfRange
	CodeNotFound
	CodeNotActive
	CodeVotingClosed
	CodeInvalidProof
	CodeAlreadyClosed
	CodeNotYetClosable
	CodeUnknownCorrelation
	CodeUnauthorized
	CodeNotGateway
	CodeAlreadyVoted
	CodeBadPlaintexts
	CodeNothingPending
	CodeIllegalTransition

	CodeInternal uint32 = 100
)

var errorCodes = []struct {
	err  error
	code uint32
}{
	{tx.ErrInvalidTx, CodeInvalidTx},
	{tx.ErrUnsupportedTxType, CodeUnsupportedTx},
	{tx.ErrUnsupportedTxVersion, CodeUnsupportedTx},
	{tx.ErrInvalidPubKey, CodeInvalidSignature},
	{tx.ErrTxSigInvalid, CodeInvalidSignature},
	{tx.ErrTxNonceInvalid, CodeInvalidNonce},
	{handler.ErrEmptyField, CodeEmptyField},
	{state.ErrInvalidWeight, CodeInvalidWeight},
	{state.ErrNotAMember, CodeNotAMember},
	{state.ErrCannotRemoveSelf, CodeCannotRemoveSelf},
	{state.ErrQuorumOutOfRange, CodeQuorumOutOfRange},
	{engine.ErrNotActive, CodeNotActive},
	{engine.ErrVotingClosed, CodeVotingClosed},
	{fhe.ErrInvalidProof, CodeInvalidProof},
	{engine.ErrAlreadyClosed, CodeAlreadyClosed},
	{engine.ErrNotYetClosable, CodeNotYetClosable},
	{engine.ErrUnknownCorrelation, CodeUnknownCorrelation},
	{engine.ErrUnauthorized, CodeUnauthorized},
	{engine.ErrNotGateway, CodeNotGateway},
	{engine.ErrAlreadyVoted, CodeAlreadyVoted},
	{engine.ErrBadPlaintexts, CodeBadPlaintexts},
	{engine.ErrNothingPending, CodeNothingPending},
	{state.ErrIllegalTransition, CodeIllegalTransition},
	{state.ErrNotFound, CodeNotFound},
}

// ErrorCode maps an error to its result code. Unknown errors are internal.
func ErrorCode(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeInternal
}
