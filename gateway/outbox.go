package gateway

import (
	"context"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/hashicorp/go-multierror"
)

// Outbox holds requests issued while a block executes and forwards them once the block is
// committed.
type Outbox struct {
	mtx     sync.Mutex
	logger  cmtlog.Logger
	next    Gateway
	pending []Request
}

func NewOutbox(next Gateway, logger cmtlog.Logger) *Outbox {
	return &Outbox{
		logger: logger.With("module", "outbox"),
		next:   next,
	}
}

func (o *Outbox) RequestDecryption(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.pending = append(o.pending, req)
	return nil
}

func (o *Outbox) Len() int {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return len(o.pending)
}

// Flush forwards pending requests in issue order. Failed requests are not kept.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mtx.Lock()
	pending := o.pending
	o.pending = nil
	o.mtx.Unlock()

	var result *multierror.Error
	for _, req := range pending {
		if err := o.next.RequestDecryption(ctx, req); err != nil {
			o.logger.Error("forward decryption request fail", "id", req.ID, "correlation", req.Correlation, "err", err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Discard drops pending requests without forwarding them.
func (o *Outbox) Discard() int {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	n := len(o.pending)
	o.pending = nil
	return n
}
