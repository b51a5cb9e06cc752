package fhe

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidProof  = errors.New("invalid input proof")
	ErrUnknownHandle = errors.New("unknown ciphertext handle")
)

// Binding ties an input ciphertext to the application and the identity that submitted it.
// A ciphertext proven for one binding is rejected under any other.
type Binding struct {
	Contract string `json:"contract"`
	Identity string `json:"identity"`
}

type EncryptedBool struct {
	Handle common.Hash `json:"handle"`
}

type EncryptedInt struct {
	Handle common.Hash `json:"handle"`
}

// Compute is the confidential-compute service the tally engine runs on.
// Implementations never expose plaintexts through this interface.
type Compute interface {
	ValidateEncryptedBool(input []byte, proof []byte, binding Binding) (EncryptedBool, error)
	EncryptInteger(v uint64) (EncryptedInt, error)
	Select(cond EncryptedBool, ifTrue, ifFalse EncryptedInt) (EncryptedInt, error)
	Add(a, b EncryptedInt) (EncryptedInt, error)
	ToHandle(v EncryptedInt) common.Hash
}

// Decrypter is held by decryption gateways only.
type Decrypter interface {
	Decrypt(handles []common.Hash) ([]uint64, error)
}
