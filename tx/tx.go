package tx

import (
	"encoding/json"
	"fmt"

	cmtcrypto "github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
)

// CouncilTx is the signed envelope of every call-in. The sender is the address of PubKey.
type CouncilTx struct {
	Version uint8         `json:"version"`
	Type    CouncilTxType `json:"type"`
	Nonce   uint64        `json:"nonce"`
	PubKey  []byte        `json:"pubkey"`
	Tx      any           `json:"tx"`
	Sig     []byte        `json:"sig"`
}

type UpsertMemberTx struct {
	Member string `json:"member"`
	Weight uint64 `json:"weight"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type RemoveMemberTx struct {
	Member string `json:"member"`
}

type CreateResolutionTx struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	RequiredQuorum uint64 `json:"requiredQuorum"`
}

type CastVoteTx struct {
	Resolution uint64 `json:"resolution"`
	Choice     []byte `json:"choice"`
	Proof      []byte `json:"proof"`
}

type CloseResolutionTx struct {
	Resolution uint64 `json:"resolution"`
}

type DecryptionResultTx struct {
	Correlation uint64   `json:"correlation"`
	Plaintexts  []uint64 `json:"plaintexts"`
}

type RequeueDecryptionTx struct {
	Resolution uint64 `json:"resolution"`
}

type councilTxTmpl[Tx any] struct {
	Version uint8         `json:"version"`
	Type    CouncilTxType `json:"type"`
	Nonce   uint64        `json:"nonce"`
	PubKey  []byte        `json:"pubkey"`
	Tx      Tx            `json:"tx"`
	Sig     []byte        `json:"sig"`
}

func NewTx(tp CouncilTxType, nonce uint64, payload any) *CouncilTx {
	return &CouncilTx{
		Version: TxVersion0,
		Type:    tp,
		Nonce:   nonce,
		Tx:      payload,
	}
}

// SigData is the envelope with the signature replaced by the chain id.
func (tx *CouncilTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = ext
	dat, err = json.Marshal(ntx)
	return
}

func (tx *CouncilTx) Sign(chainId string, key cmtcrypto.PrivKey) (err error) {
	tx.PubKey = key.PubKey().Bytes()
	dat, err := tx.SigData([]byte(chainId))
	if err != nil {
		return
	}
	tx.Sig, err = key.Sign(dat)
	return
}

func (tx *CouncilTx) Verify(chainId string) error {
	if len(tx.PubKey) != ed25519.PubKeySize {
		return ErrInvalidPubKey
	}
	dat, err := tx.SigData([]byte(chainId))
	if err != nil {
		return err
	}
	if !ed25519.PubKey(tx.PubKey).VerifySignature(dat, tx.Sig) {
		return ErrTxSigInvalid
	}
	return nil
}

// Sender is the hex address derived from PubKey.
func (tx *CouncilTx) Sender() string {
	return ed25519.PubKey(tx.PubKey).Address().String()
}

func parseTxType(dat []byte) CouncilTxType {
	var tx struct {
		Type CouncilTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return TxTypeUnknown
	}
	return tx.Type
}

func unmarshalTx[Tx any](dat []byte) (btx *CouncilTx, err error) {
	var txt councilTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidTx, err)
		return
	}
	if txt.Version != TxVersion0 {
		err = fmt.Errorf("%w: %d", ErrUnsupportedTxVersion, txt.Version)
		return
	}
	btx = new(CouncilTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.PubKey = txt.PubKey
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalTx(dat []byte) (btx *CouncilTx, err error) {
	tp := parseTxType(dat)
	switch tp {
	case TxTypeUpsertMember:
		return unmarshalTx[UpsertMemberTx](dat)
	case TxTypeRemoveMember:
		return unmarshalTx[RemoveMemberTx](dat)
	case TxTypeCreateResolution:
		return unmarshalTx[CreateResolutionTx](dat)
	case TxTypeCastVote:
		return unmarshalTx[CastVoteTx](dat)
	case TxTypeCloseResolution:
		return unmarshalTx[CloseResolutionTx](dat)
	case TxTypeDecryptionResult:
		return unmarshalTx[DecryptionResultTx](dat)
	case TxTypeRequeueDecryption:
		return unmarshalTx[RequeueDecryptionTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalTx(btx *CouncilTx) (dat []byte, err error) {
	return json.Marshal(btx)
}
