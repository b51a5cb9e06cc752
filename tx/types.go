package tx

import (
	"errors"
)

type CouncilTxType uint8

const (
	TxTypeUnknown           CouncilTxType = 0
	TxTypeUpsertMember      CouncilTxType = 1
	TxTypeRemoveMember      CouncilTxType = 2
	TxTypeCreateResolution  CouncilTxType = 3
	TxTypeCastVote          CouncilTxType = 4
	TxTypeCloseResolution   CouncilTxType = 5
	TxTypeDecryptionResult  CouncilTxType = 6
	TxTypeRequeueDecryption CouncilTxType = 7
)

func (t CouncilTxType) String() string {
	switch t {
	case TxTypeUpsertMember:
		return "upsert_member"
	case TxTypeRemoveMember:
		return "remove_member"
	case TxTypeCreateResolution:
		return "create_resolution"
	case TxTypeCastVote:
		return "cast_vote"
	case TxTypeCloseResolution:
		return "close_resolution"
	case TxTypeDecryptionResult:
		return "decryption_result"
	case TxTypeRequeueDecryption:
		return "requeue_decryption"
	}
	return "unknown"
}

const (
	TxVersion0 uint8 = 0
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrInvalidPubKey        = errors.New("invalid pubkey")
	ErrTxNonceInvalid       = errors.New("nonce invalid")
	ErrTxSigInvalid         = errors.New("signature invalid")
)
