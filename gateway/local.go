package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gammazero/workerpool"
	"github.com/sethvargo/go-retry"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/calehh/council-app/fhe"
)

const (
	journalPrefix = "q/"

	DefaultWorkers    = 4
	DefaultRetryBase  = 200 * time.Millisecond
	DefaultMaxRetries = 8
)

// Local is an in-process gateway. Requests are journaled until their result is delivered,
// checked against committed state, decrypted on a worker pool and handed to the callback
// with exponential backoff.
type Local struct {
	logger    cmtlog.Logger
	identity  string
	decrypter fhe.Decrypter
	verifier  Verifier
	callback  Callback
	journal   *leveldb.DB
	clock     clock.Clock
	pool      *workerpool.WorkerPool

	retryBase  time.Duration
	maxRetries uint64

	ctx    context.Context
	cancel context.CancelFunc

	mtx    sync.Mutex
	closed bool
}

type LocalOption func(*Local)

func WithClock(c clock.Clock) LocalOption {
	return func(l *Local) { l.clock = c }
}

func WithRetry(base time.Duration, maxRetries uint64) LocalOption {
	return func(l *Local) {
		l.retryBase = base
		l.maxRetries = maxRetries
	}
}

func WithWorkers(n int) LocalOption {
	return func(l *Local) {
		if n > 0 {
			l.pool = workerpool.New(n)
		}
	}
}

// NewLocal creates a gateway that answers as identity. Only requests the verifier reports as
// outstanding are decrypted. journal may be nil, in which case pending requests are lost on
// restart.
func NewLocal(identity string, decrypter fhe.Decrypter, verifier Verifier, callback Callback, journal *leveldb.DB, logger cmtlog.Logger, opts ...LocalOption) *Local {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Local{
		logger:     logger.With("module", "gateway"),
		identity:   identity,
		decrypter:  decrypter,
		verifier:   verifier,
		callback:   callback,
		journal:    journal,
		clock:      clock.New(),
		retryBase:  DefaultRetryBase,
		maxRetries: DefaultMaxRetries,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.pool == nil {
		l.pool = workerpool.New(DefaultWorkers)
	}
	return l
}

func (l *Local) RequestDecryption(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.closed {
		return ErrClosed
	}
	if err := l.record(req); err != nil {
		return fmt.Errorf("journal request %v: %w", req.ID, err)
	}
	l.logger.Info("accept decryption request", "id", req.ID, "correlation", req.Correlation, "handles", len(req.Handles))
	l.pool.Submit(func() { l.process(req) })
	return nil
}

// Replay resubmits every journaled request. It is called once after a restart.
func (l *Local) Replay() (n int, err error) {
	if l.journal == nil {
		return 0, nil
	}
	reqs, err := l.Pending()
	if err != nil {
		return 0, err
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	for _, req := range reqs {
		req := req
		l.pool.Submit(func() { l.process(req) })
	}
	l.logger.Info("replay decryption requests", "count", len(reqs))
	return len(reqs), nil
}

// Pending returns the journaled requests that have not been delivered yet.
func (l *Local) Pending() (reqs []Request, err error) {
	if l.journal == nil {
		return nil, nil
	}
	it := l.journal.NewIterator(util.BytesPrefix([]byte(journalPrefix)), nil)
	defer it.Release()
	for it.Next() {
		var req Request
		if err = json.Unmarshal(it.Value(), &req); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, it.Error()
}

// Close stops accepting requests, abandons in-flight retries and waits for the workers.
func (l *Local) Close() error {
	l.mtx.Lock()
	if l.closed {
		l.mtx.Unlock()
		return nil
	}
	l.closed = true
	l.mtx.Unlock()
	l.cancel()
	l.pool.StopWait()
	return nil
}

// process verifies and decrypts req, then delivers the plaintexts. Lookup and delivery
// failures are retried on the backoff; a request that does not match committed state or
// cannot be decrypted is dropped and left to RequeueDecryption.
func (l *Local) process(req Request) {
	logger := l.logger.With("id", req.ID, "correlation", req.Correlation)
	if !req.Deadline.IsZero() && l.clock.Now().After(req.Deadline) {
		logger.Error("decryption deadline passed, dropping request", "deadline", req.Deadline)
		l.forget(req)
		return
	}

	var plaintexts []uint64
	backoff := retry.WithMaxRetries(l.maxRetries, retry.NewExponential(l.retryBase))
	attempt := 0
	err := retry.Do(l.ctx, backoff, func(ctx context.Context) error {
		attempt++
		if plaintexts == nil {
			target, err := l.verifier.DecryptionTarget(ctx, req.Correlation)
			if err != nil {
				logger.Error("lookup decryption target fail", "attempt", attempt, "err", err)
				return retry.RetryableError(err)
			}
			if err = req.Match(target); errors.Is(err, ErrNotYetPending) {
				return retry.RetryableError(err)
			} else if err != nil {
				return err
			}
			if plaintexts, err = l.decrypter.Decrypt(req.Handles); err != nil {
				return fmt.Errorf("decrypt: %w", err)
			}
		}
		if err := l.callback.OnDecryptionResolved(ctx, l.identity, req.Correlation, plaintexts); err != nil {
			logger.Error("deliver decryption result fail", "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if l.ctx.Err() != nil {
			// shutting down, the journal keeps the request for Replay
			return
		}
		logger.Error("drop decryption request", "attempts", attempt, "err", err)
	} else {
		logger.Info("decryption result delivered", "attempts", attempt)
	}
	l.forget(req)
}

func (l *Local) record(req Request) error {
	if l.journal == nil {
		return nil
	}
	val, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return l.journal.Put(journalKey(req), val, nil)
}

func (l *Local) forget(req Request) {
	if l.journal == nil {
		return
	}
	if err := l.journal.Delete(journalKey(req), nil); err != nil {
		l.logger.Error("remove journal entry fail", "id", req.ID, "err", err)
	}
}

func journalKey(req Request) []byte {
	return []byte(journalPrefix + req.ID.String())
}
