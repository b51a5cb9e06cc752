package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/calehh/council-app/fhe"
	"github.com/calehh/council-app/types"
)

type recorder struct {
	mtx  sync.Mutex
	reqs []Request
	err  error
}

func (r *recorder) RequestDecryption(ctx context.Context, req Request) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.err != nil {
		return r.err
	}
	r.reqs = append(r.reqs, req)
	return nil
}

type result struct {
	caller      string
	correlation uint64
	plaintexts  []uint64
}

func sealedTallies(t *testing.T) (*fhe.Sealed, []common.Hash) {
	t.Helper()
	s := fhe.NewSealed(fhe.DevKey(), nil)
	yes, err := s.EncryptInteger(7)
	require.NoError(t, err)
	no, err := s.EncryptInteger(2)
	require.NoError(t, err)
	return s, []common.Hash{yes.Handle, no.Handle}
}

func pendingTarget(req Request) *types.DecryptionTarget {
	return &types.DecryptionTarget{
		Resolution: req.Correlation,
		Status:     types.StatusDecryptionPending,
		RequestId:  req.ID.String(),
		Handles:    req.Handles,
	}
}

// chainOf answers like a chain where each of reqs is the outstanding request of its
// resolution.
func chainOf(reqs ...Request) Verifier {
	targets := make(map[uint64]*types.DecryptionTarget, len(reqs))
	for _, req := range reqs {
		targets[req.Correlation] = pendingTarget(req)
	}
	return VerifierFunc(func(ctx context.Context, correlation uint64) (*types.DecryptionTarget, error) {
		t, ok := targets[correlation]
		if !ok {
			return nil, errors.New("not found")
		}
		return t, nil
	})
}

func newJournal(t *testing.T) *leveldb.DB {
	t.Helper()
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOutboxFlushesInOrder(t *testing.T) {
	next := &recorder{}
	o := NewOutbox(next, cmtlog.NewNopLogger())
	a := Request{ID: uuid.New(), Handles: []common.Hash{{1}}, Correlation: 1}
	b := Request{ID: uuid.New(), Handles: []common.Hash{{2}}, Correlation: 2}
	require.NoError(t, o.RequestDecryption(context.Background(), a))
	require.NoError(t, o.RequestDecryption(context.Background(), b))
	assert.ErrorIs(t, o.RequestDecryption(context.Background(), Request{ID: uuid.New()}), ErrNoHandles)

	assert.Equal(t, 2, o.Len())
	assert.Empty(t, next.reqs)

	require.NoError(t, o.Flush(context.Background()))
	assert.Equal(t, []Request{a, b}, next.reqs)
	assert.Equal(t, 0, o.Len())
}

func TestOutboxFlushReportsFailures(t *testing.T) {
	next := &recorder{err: errors.New("down")}
	o := NewOutbox(next, cmtlog.NewNopLogger())
	require.NoError(t, o.RequestDecryption(context.Background(), Request{ID: uuid.New(), Handles: []common.Hash{{1}}}))
	require.NoError(t, o.RequestDecryption(context.Background(), Request{ID: uuid.New(), Handles: []common.Hash{{2}}}))
	err := o.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Equal(t, 0, o.Len())

	require.NoError(t, o.RequestDecryption(context.Background(), Request{ID: uuid.New(), Handles: []common.Hash{{3}}}))
	assert.Equal(t, 1, o.Discard())
}

func TestLocalDeliversResult(t *testing.T) {
	sealed, handles := sealedTallies(t)
	results := make(chan result, 1)
	cb := CallbackFunc(func(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
		results <- result{caller, correlation, plaintexts}
		return nil
	})
	journal := newJournal(t)
	req := Request{ID: uuid.New(), Handles: handles, Correlation: 9, Deadline: time.Now().Add(time.Minute)}
	l := NewLocal("GATEWAY", sealed, chainOf(req), cb, journal, cmtlog.NewNopLogger(), WithWorkers(2))
	defer l.Close()

	require.NoError(t, l.RequestDecryption(context.Background(), req))

	select {
	case got := <-results:
		assert.Equal(t, result{"GATEWAY", 9, []uint64{7, 2}}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no callback")
	}
	assert.Eventually(t, func() bool {
		pending, err := l.Pending()
		return err == nil && len(pending) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLocalRetriesCallback(t *testing.T) {
	sealed, handles := sealedTallies(t)
	var mtx sync.Mutex
	calls := 0
	done := make(chan struct{})
	cb := CallbackFunc(func(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
		mtx.Lock()
		defer mtx.Unlock()
		calls++
		if calls < 3 {
			return errors.New("node not ready")
		}
		close(done)
		return nil
	})
	req := Request{ID: uuid.New(), Handles: handles}
	l := NewLocal("GATEWAY", sealed, chainOf(req), cb, nil, cmtlog.NewNopLogger(), WithRetry(time.Millisecond, 5))
	defer l.Close()

	require.NoError(t, l.RequestDecryption(context.Background(), req))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never succeeded")
	}
	mtx.Lock()
	assert.Equal(t, 3, calls)
	mtx.Unlock()
}

func TestLocalDropsExpiredRequest(t *testing.T) {
	sealed, handles := sealedTallies(t)
	mock := clock.NewMock()
	mock.Set(time.Unix(5000, 0))
	called := make(chan struct{}, 1)
	cb := CallbackFunc(func(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
		called <- struct{}{}
		return nil
	})
	journal := newJournal(t)
	l := NewLocal("GATEWAY", sealed, chainOf(), cb, journal, cmtlog.NewNopLogger(), WithClock(mock))

	require.NoError(t, l.RequestDecryption(context.Background(), Request{ID: uuid.New(), Handles: handles, Deadline: time.Unix(4000, 0)}))
	require.NoError(t, l.Close())

	select {
	case <-called:
		t.Fatal("expired request delivered")
	default:
	}
	pending, err := l.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.ErrorIs(t, l.RequestDecryption(context.Background(), Request{ID: uuid.New(), Handles: handles}), ErrClosed)
}

func TestLocalReplaysJournal(t *testing.T) {
	sealed, handles := sealedTallies(t)
	journal := newJournal(t)

	req := Request{ID: uuid.New(), Handles: handles, Correlation: 4}
	stale := NewLocal("GATEWAY", sealed, chainOf(req), nil, journal, cmtlog.NewNopLogger())
	require.NoError(t, stale.record(req))
	require.NoError(t, stale.Close())

	results := make(chan result, 1)
	cb := CallbackFunc(func(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
		results <- result{caller, correlation, plaintexts}
		return nil
	})
	l := NewLocal("GATEWAY", sealed, chainOf(req), cb, journal, cmtlog.NewNopLogger())
	defer l.Close()
	n, err := l.Replay()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case got := <-results:
		assert.Equal(t, uint64(4), got.correlation)
		assert.Equal(t, []uint64{7, 2}, got.plaintexts)
	case <-time.After(5 * time.Second):
		t.Fatal("replayed request not delivered")
	}
}

func TestHTTPClientAgainstServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	key := ed25519.GenPrivKey()
	backend := &recorder{}
	srv := httptest.NewServer(NewServer("", backend, []string{key.PubKey().Address().String()}, cmtlog.NewNopLogger()).Handler())
	defer srv.Close()

	client := NewHTTP(srv.URL, key, cmtlog.NewNopLogger())
	req := Request{
		ID:          uuid.New(),
		Handles:     []common.Hash{common.HexToHash("0xaa"), common.HexToHash("0xbb")},
		CallbackID:  "council",
		Correlation: 3,
		Deadline:    time.Unix(100, 0).UTC(),
	}
	require.NoError(t, client.RequestDecryption(context.Background(), req))
	require.Len(t, backend.reqs, 1)
	assert.Equal(t, req, backend.reqs[0])

	backend.err = ErrClosed
	err := client.RequestDecryption(context.Background(), req)
	assert.ErrorIs(t, err, ErrRemoteFail)
	assert.Contains(t, err.Error(), "gateway closed")
}

func TestServerAuthenticatesClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	node := ed25519.GenPrivKey()
	backend := &recorder{}
	h := NewServer("", backend, []string{node.PubKey().Address().String()}, cmtlog.NewNopLogger()).Handler()
	req := Request{ID: uuid.New(), Handles: []common.Hash{{1}, {2}}, Correlation: 1}

	post := func(body any) int {
		dat, err := json.Marshal(body)
		require.NoError(t, err)
		hreq := httptest.NewRequest(http.MethodPost, RequestPath, bytes.NewReader(dat))
		hreq.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, hreq)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, post(SignedRequest{Request: req}))

	stranger, err := SignRequest(req, ed25519.GenPrivKey())
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, post(stranger))

	forged, err := SignRequest(req, node)
	require.NoError(t, err)
	forged.Request.Handles = []common.Hash{{3}, {4}}
	assert.Equal(t, http.StatusUnauthorized, post(forged))

	signed, err := SignRequest(req, node)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, post(signed))
	require.Len(t, backend.reqs, 1)
	assert.Equal(t, req.ID, backend.reqs[0].ID)
}

func TestRequestMatch(t *testing.T) {
	req := Request{ID: uuid.New(), Handles: []common.Hash{{1}, {2}}, Correlation: 5}
	assert.NoError(t, req.Match(pendingTarget(req)))

	cases := map[string]func(d *types.DecryptionTarget){
		"other resolution": func(d *types.DecryptionTarget) { d.Resolution = 6 },
		"resolved":         func(d *types.DecryptionTarget) { d.Status = types.StatusResolved },
		"stale request":    func(d *types.DecryptionTarget) { d.RequestId = uuid.NewString() },
		"other handles":    func(d *types.DecryptionTarget) { d.Handles = []common.Hash{{1}, {9}} },
		"fewer handles":    func(d *types.DecryptionTarget) { d.Handles = d.Handles[:1] },
	}
	for name, mutate := range cases {
		target := pendingTarget(req)
		target.Handles = append([]common.Hash(nil), req.Handles...)
		mutate(target)
		assert.ErrorIs(t, req.Match(target), ErrRequestMismatch, name)
	}

	closed := pendingTarget(req)
	closed.Status = types.StatusClosed
	closed.Handles = nil
	assert.ErrorIs(t, req.Match(closed), ErrNotYetPending)
	assert.ErrorIs(t, req.Match(nil), ErrRequestMismatch)
}

// A caller that knows a voter's ballot handle must not get it decrypted, even with the
// request id and correlation of a pending resolution.
func TestLocalRefusesNonTallyHandles(t *testing.T) {
	sealed, tallies := sealedTallies(t)
	binding := fhe.Binding{Contract: "council-test", Identity: "ALICE"}
	in, proof, err := fhe.SealBool(fhe.DevKey(), true, binding)
	require.NoError(t, err)
	ballot, err := sealed.ValidateEncryptedBool(in, proof, binding)
	require.NoError(t, err)

	outstanding := Request{ID: uuid.New(), Handles: tallies, Correlation: 2}
	calls := make(chan []uint64, 4)
	cb := CallbackFunc(func(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
		calls <- plaintexts
		return nil
	})
	journal := newJournal(t)
	l := NewLocal("GATEWAY", sealed, chainOf(outstanding), cb, journal, cmtlog.NewNopLogger(), WithRetry(time.Millisecond, 2))

	attacks := []Request{
		{ID: outstanding.ID, Handles: []common.Hash{ballot.Handle, ballot.Handle}, Correlation: 2},
		{ID: outstanding.ID, Handles: []common.Hash{tallies[0], ballot.Handle}, Correlation: 2},
		{ID: uuid.New(), Handles: tallies, Correlation: 2},
		{ID: uuid.New(), Handles: []common.Hash{ballot.Handle}, Correlation: 7},
	}
	for _, req := range attacks {
		require.NoError(t, l.RequestDecryption(context.Background(), req))
	}
	assert.Eventually(t, func() bool {
		pending, err := l.Pending()
		return err == nil && len(pending) == 0
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, l.Close())
	assert.Empty(t, calls)
}

func TestLocalWaitsForCommittedClose(t *testing.T) {
	sealed, handles := sealedTallies(t)
	req := Request{ID: uuid.New(), Handles: handles, Correlation: 1}
	var mtx sync.Mutex
	lookups := 0
	verifier := VerifierFunc(func(ctx context.Context, correlation uint64) (*types.DecryptionTarget, error) {
		mtx.Lock()
		defer mtx.Unlock()
		lookups++
		target := pendingTarget(req)
		if lookups < 3 {
			target.Status = types.StatusClosed
			target.Handles = nil
		}
		return target, nil
	})
	results := make(chan []uint64, 1)
	cb := CallbackFunc(func(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
		results <- plaintexts
		return nil
	})
	l := NewLocal("GATEWAY", sealed, verifier, cb, nil, cmtlog.NewNopLogger(), WithRetry(time.Millisecond, 5))
	defer l.Close()

	require.NoError(t, l.RequestDecryption(context.Background(), req))
	select {
	case got := <-results:
		assert.Equal(t, []uint64{7, 2}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("request never delivered")
	}
}

func TestLocalForgetsUndecryptableRequest(t *testing.T) {
	sealed, _ := sealedTallies(t)
	req := Request{ID: uuid.New(), Handles: []common.Hash{{0xde}, {0xad}}, Correlation: 3}
	called := make(chan struct{}, 1)
	cb := CallbackFunc(func(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
		called <- struct{}{}
		return nil
	})
	journal := newJournal(t)
	l := NewLocal("GATEWAY", sealed, chainOf(req), cb, journal, cmtlog.NewNopLogger(), WithRetry(time.Millisecond, 5))

	require.NoError(t, l.RequestDecryption(context.Background(), req))
	assert.Eventually(t, func() bool {
		pending, err := l.Pending()
		return err == nil && len(pending) == 0
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, l.Close())
	assert.Empty(t, called)
}
