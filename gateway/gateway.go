package gateway

import (
	"context"
	"errors"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	ErrClosed     = errors.New("gateway closed")
	ErrNoHandles  = errors.New("decryption request without handles")
	ErrRemoteFail = errors.New("remote gateway refused request")
)

// Request asks for the plaintexts behind Handles. The answer is delivered asynchronously to
// the callback named by CallbackID together with Correlation. Deadline is advisory.
type Request struct {
	ID          uuid.UUID     `json:"id"`
	Handles     []common.Hash `json:"handles"`
	CallbackID  string        `json:"callbackId"`
	Correlation uint64        `json:"correlation"`
	Deadline    time.Time     `json:"deadline"`
}

func (r *Request) Validate() error {
	if len(r.Handles) == 0 {
		return ErrNoHandles
	}
	return nil
}

// Gateway accepts decryption requests. RequestDecryption must not block on the decryption
// itself.
type Gateway interface {
	RequestDecryption(ctx context.Context, req Request) error
}

// Callback receives decryption results. caller is the identity of the gateway delivering them.
type Callback interface {
	OnDecryptionResolved(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error
}

type CallbackFunc func(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error

func (f CallbackFunc) OnDecryptionResolved(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
	return f(ctx, caller, correlation, plaintexts)
}

// Discard drops every request. Nodes that do not operate the gateway use it.
type Discard struct {
	logger cmtlog.Logger
}

func NewDiscard(logger cmtlog.Logger) *Discard {
	return &Discard{logger: logger.With("module", "gateway")}
}

func (d *Discard) RequestDecryption(ctx context.Context, req Request) error {
	d.logger.Debug("drop decryption request", "id", req.ID, "correlation", req.Correlation)
	return nil
}
