package fhe

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/syndtr/goleveldb/leveldb"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceLen = 24

var (
	tagInput   = []byte("input")
	tagTrivial = []byte("trivial")
	tagSelect  = []byte("select")
	tagAdd     = []byte("add")
)

var _ Compute = &Sealed{}
var _ Decrypter = &Sealed{}

// Sealed is a development coprocessor. Inputs are secretbox-sealed under a network key and every
// derived value sits behind a deterministic keccak handle, so replicas replaying the same
// operations agree on every handle. Values are optionally journaled to leveldb so handles stored
// in state survive restarts.
type Sealed struct {
	mtx    sync.RWMutex
	key    [32]byte
	values map[common.Hash]uint64
	db     *leveldb.DB
}

func NewSealed(key [32]byte, db *leveldb.DB) *Sealed {
	return &Sealed{
		key:    key,
		values: make(map[common.Hash]uint64),
		db:     db,
	}
}

func DevKey() [32]byte {
	return [32]byte(crypto.Keccak256Hash([]byte("council/dev-compute-key")))
}

func ParseKey(s string) (key [32]byte, err error) {
	if s == "" {
		return DevKey(), nil
	}
	b := common.FromHex(s)
	if len(b) != len(key) {
		err = fmt.Errorf("compute key must be %d bytes, got %d", len(key), len(b))
		return
	}
	copy(key[:], b)
	return
}

func proofFor(input []byte, binding Binding) []byte {
	return crypto.Keccak256(input, []byte(binding.Contract), []byte(binding.Identity))
}

// SealBool produces an input ciphertext and its proof for the given binding. It is the client
// half of the Sealed coprocessor.
func SealBool(key [32]byte, v bool, binding Binding) (input []byte, proof []byte, err error) {
	var nonce [nonceLen]byte
	if _, err = rand.Read(nonce[:]); err != nil {
		return nil, nil, err
	}
	msg := []byte{0}
	if v {
		msg[0] = 1
	}
	input = secretbox.Seal(nonce[:], msg, &nonce, &key)
	proof = proofFor(input, binding)
	return
}

func (s *Sealed) ValidateEncryptedBool(input []byte, proof []byte, binding Binding) (EncryptedBool, error) {
	if len(input) <= nonceLen || !bytes.Equal(proof, proofFor(input, binding)) {
		return EncryptedBool{}, ErrInvalidProof
	}
	var nonce [nonceLen]byte
	copy(nonce[:], input[:nonceLen])
	msg, ok := secretbox.Open(nil, input[nonceLen:], &nonce, &s.key)
	if !ok || len(msg) != 1 || msg[0] > 1 {
		return EncryptedBool{}, ErrInvalidProof
	}
	h := crypto.Keccak256Hash(tagInput, input)
	if err := s.put(h, uint64(msg[0])); err != nil {
		return EncryptedBool{}, err
	}
	return EncryptedBool{Handle: h}, nil
}

func (s *Sealed) EncryptInteger(v uint64) (EncryptedInt, error) {
	h := crypto.Keccak256Hash(tagTrivial, u64Bytes(v))
	if err := s.put(h, v); err != nil {
		return EncryptedInt{}, err
	}
	return EncryptedInt{Handle: h}, nil
}

func (s *Sealed) Select(cond EncryptedBool, ifTrue, ifFalse EncryptedInt) (EncryptedInt, error) {
	c, err := s.get(cond.Handle)
	if err != nil {
		return EncryptedInt{}, err
	}
	t, err := s.get(ifTrue.Handle)
	if err != nil {
		return EncryptedInt{}, err
	}
	f, err := s.get(ifFalse.Handle)
	if err != nil {
		return EncryptedInt{}, err
	}
	v := f
	if c == 1 {
		v = t
	}
	h := crypto.Keccak256Hash(tagSelect, cond.Handle[:], ifTrue.Handle[:], ifFalse.Handle[:])
	if err = s.put(h, v); err != nil {
		return EncryptedInt{}, err
	}
	return EncryptedInt{Handle: h}, nil
}

func (s *Sealed) Add(a, b EncryptedInt) (EncryptedInt, error) {
	x, err := s.get(a.Handle)
	if err != nil {
		return EncryptedInt{}, err
	}
	y, err := s.get(b.Handle)
	if err != nil {
		return EncryptedInt{}, err
	}
	h := crypto.Keccak256Hash(tagAdd, a.Handle[:], b.Handle[:])
	if err = s.put(h, x+y); err != nil {
		return EncryptedInt{}, err
	}
	return EncryptedInt{Handle: h}, nil
}

func (s *Sealed) ToHandle(v EncryptedInt) common.Hash {
	return v.Handle
}

func (s *Sealed) Decrypt(handles []common.Hash) ([]uint64, error) {
	out := make([]uint64, len(handles))
	for i, h := range handles {
		v, err := s.get(h)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *Sealed) put(h common.Hash, v uint64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.values[h]; ok {
		return nil
	}
	if s.db != nil {
		if err := s.db.Put(h[:], u64Bytes(v), nil); err != nil {
			return err
		}
	}
	s.values[h] = v
	return nil
}

func (s *Sealed) get(h common.Hash) (uint64, error) {
	s.mtx.RLock()
	v, ok := s.values[h]
	s.mtx.RUnlock()
	if ok {
		return v, nil
	}
	if s.db == nil {
		return 0, fmt.Errorf("%w: %v", ErrUnknownHandle, h)
	}
	val, err := s.db.Get(h[:], nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, fmt.Errorf("%w: %v", ErrUnknownHandle, h)
		}
		return 0, err
	}
	v = binary.BigEndian.Uint64(val)
	s.mtx.Lock()
	s.values[h] = v
	s.mtx.Unlock()
	return v, nil
}

func u64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
