package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/hashicorp/go-multierror"

	"github.com/calehh/council-app/types"
)

var (
	KeyMember      = "m%s"
	KeyResolution  = "r%v"
	KeyVote        = "v%v/%s"
	KeyNonce       = "n%s"
	KeyTotalWeight = "w"
	KeyNextId      = "c"
	KeyParams      = "g"
	KeyChainId     = "i"
)

var (
	ErrInvalidWeight     = errors.New("invalid weight")
	ErrNotAMember        = errors.New("not a member")
	ErrCannotRemoveSelf  = errors.New("cannot remove self")
	ErrQuorumOutOfRange  = errors.New("quorum out of range")
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Store is the replicated state of the council: the membership registry and the resolution
// table, kept in a versioned iavl tree. Every exported mutator runs under the store mutex and
// validates before writing, so a failed call leaves the tree untouched.
type Store struct {
	mtx sync.RWMutex

	logger cmtlog.Logger
	db     dbm.DB
	tree   *iavl.MutableTree
	hash   common.Hash
}

func NewStore(dir string, logger cmtlog.Logger) (s *Store, err error) {
	ldb, err := dbm.NewDB("council", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	return openStore(ldb, logger)
}

func NewMemStore(logger cmtlog.Logger) (*Store, error) {
	return openStore(dbm.NewMemDB(), logger)
}

func openStore(db dbm.DB, logger cmtlog.Logger) (s *Store, err error) {
	logger = logger.With("module", "councildb")
	tree := iavl.NewMutableTree(db, 128, true, newTreeLogger(logger))
	version, err := tree.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	s = &Store{
		logger: logger,
		db:     db,
		tree:   tree,
	}
	if version > 0 {
		s.hash = calcHash(tree.Hash())
	}
	return
}

func calcHash(rootHash []byte) common.Hash {
	return crypto.Keccak256Hash(rootHash)
}

// Close releases the tree and its backing database. The tree does not own the database.
func (s *Store) Close() error {
	var result *multierror.Error
	if err := s.tree.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Commit saves the working tree as a new version and returns the app hash.
func (s *Store) Commit() (h common.Hash, version int64, err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	root, version, err := s.tree.SaveVersion()
	if err != nil {
		return
	}
	s.hash = calcHash(root)
	h = s.hash
	return
}

func (s *Store) Hash() common.Hash {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.hash
}

func (s *Store) WorkingHash() common.Hash {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return calcHash(s.tree.WorkingHash())
}

func (s *Store) Version() int64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.tree.Version()
}

func (s *Store) Params() (p types.Params, err error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.params()
}

func (s *Store) SetParams(p types.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.setJSON(KeyParams, &p)
}

func (s *Store) params() (p types.Params, err error) {
	ok, err := s.getJSON(KeyParams, &p)
	if err != nil {
		return
	}
	if !ok {
		err = fmt.Errorf("params %w", ErrNotFound)
	}
	return
}

// ChainId is empty until InitChain has run.
func (s *Store) ChainId() (string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	val, err := s.tree.Get([]byte(KeyChainId))
	return string(val), err
}

func (s *Store) SetChainId(id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, err := s.tree.Set([]byte(KeyChainId), []byte(id))
	return err
}

func (s *Store) Nonce(addr string) (uint64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.getUint(fmt.Sprintf(KeyNonce, addr))
}

func (s *Store) IncNonce(addr string) (nonce uint64, err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	key := fmt.Sprintf(KeyNonce, addr)
	nonce, err = s.getUint(key)
	if err != nil {
		return
	}
	nonce += 1
	err = s.setUint(key, nonce)
	return
}

func (s *Store) getJSON(key string, v any) (bool, error) {
	val, err := s.tree.Get([]byte(key))
	if err != nil {
		return false, err
	}
	if val == nil {
		return false, nil
	}
	return true, json.Unmarshal(val, v)
}

func (s *Store) setJSON(key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.tree.Set([]byte(key), val)
	return err
}

func (s *Store) getUint(key string) (n uint64, err error) {
	val, err := s.tree.Get([]byte(key))
	if err != nil || val == nil {
		return
	}
	err = rlp.DecodeBytes(val, &n)
	return
}

func (s *Store) setUint(key string, n uint64) error {
	val, err := rlp.EncodeToBytes(n)
	if err != nil {
		return err
	}
	_, err = s.tree.Set([]byte(key), val)
	return err
}

func PrefixEndBytes(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for {
		if end[len(end)-1] != byte(255) {
			end[len(end)-1]++
			break
		}

		end = end[:len(end)-1]

		if len(end) == 0 {
			end = nil
			break
		}
	}

	return end
}
