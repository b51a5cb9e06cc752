package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/google/uuid"

	"github.com/calehh/council-app/fhe"
	"github.com/calehh/council-app/gateway"
	"github.com/calehh/council-app/state"
	"github.com/calehh/council-app/types"
)

const (
	// CallbackID names the engine as the receiver of gateway results.
	CallbackID  = "council/onDecryptionResolved"
	lockStripes = 64
)

var (
	ErrNotActive          = errors.New("resolution not active")
	ErrVotingClosed       = errors.New("voting period ended")
	ErrAlreadyClosed      = errors.New("resolution already closed")
	ErrNotYetClosable     = errors.New("resolution not yet closable")
	ErrUnknownCorrelation = errors.New("unknown correlation")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotGateway         = errors.New("caller is not the decryption gateway")
	ErrAlreadyVoted       = errors.New("already voted")
	ErrBadPlaintexts      = errors.New("unexpected plaintexts")
	ErrNothingPending     = errors.New("no decryption outstanding")
)

var requestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("council/decryption-request"))

// Engine runs the voting and lifecycle rules on top of the store. It owns no domain state:
// the store holds every record, the compute adapter every ciphertext.
type Engine struct {
	logger  cmtlog.Logger
	store   *state.Store
	compute fhe.Compute
	gateway gateway.Gateway
	clock   clock.Clock

	locks [lockStripes]sync.Mutex
}

var (
	_ gateway.Callback = &Engine{}
	_ gateway.Verifier = &Engine{}
)

func New(store *state.Store, compute fhe.Compute, gw gateway.Gateway, clk clock.Clock, logger cmtlog.Logger) *Engine {
	return &Engine{
		logger:  logger.With("module", "engine"),
		store:   store,
		compute: compute,
		gateway: gw,
		clock:   clk,
	}
}

// lock serialises call-ins on the same resolution.
func (e *Engine) lock(id uint64) func() {
	mu := &e.locks[id%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

func (e *Engine) Store() *state.Store {
	return e.store
}

func (e *Engine) GetMember(addr string) (types.MemberView, error) {
	m, err := e.store.Member(addr)
	if err != nil || m == nil {
		return types.MemberView{}, err
	}
	return m.View(), nil
}

func (e *Engine) GetResolution(id uint64) (types.ResolutionView, error) {
	r, err := e.store.Resolution(id)
	if err != nil {
		return types.ResolutionView{}, err
	}
	return r.View(), nil
}

// DecryptionTarget reports the outstanding decryption of resolution id, so a gateway can
// check a request before revealing anything.
func (e *Engine) DecryptionTarget(ctx context.Context, id uint64) (*types.DecryptionTarget, error) {
	r, err := e.store.Resolution(id)
	if err != nil {
		return nil, err
	}
	t := r.DecryptionTarget()
	return &t, nil
}

func (e *Engine) GetTotalWeight() (uint64, error) {
	return e.store.TotalWeight()
}

func (e *Engine) GetResolutionCount() (uint64, error) {
	return e.store.ResolutionCount()
}

func (e *Engine) ListResolutions(offset, limit uint64) ([]types.ResolutionView, error) {
	rs, err := e.store.Resolutions(offset, limit)
	if err != nil {
		return nil, err
	}
	views := make([]types.ResolutionView, len(rs))
	for i, r := range rs {
		views[i] = r.View()
	}
	return views, nil
}

func memberEvent(m *state.Member, total uint64, reason string) *types.EventMemberUpdated {
	return &types.EventMemberUpdated{
		Address:     m.Address,
		Active:      m.Active,
		Weight:      m.Weight,
		Name:        m.Name,
		Role:        m.Role,
		TotalWeight: total,
		Reason:      reason,
	}
}

// VoteResult is what an accepted ballot emits. Enrolled is set when the voter was
// auto-enrolled by this ballot.
type VoteResult struct {
	Vote     *types.EventVoteCast
	Enrolled *types.EventMemberUpdated
}

func (r *VoteResult) Events() []abci.Event {
	var evs []abci.Event
	if r.Enrolled != nil {
		evs = append(evs, types.EncodeEventMemberUpdated(r.Enrolled))
	}
	return append(evs, types.EncodeEventVoteCast(r.Vote))
}

type CreateResult struct {
	Created  *types.EventResolutionCreated
	Enrolled *types.EventMemberUpdated
}

func (r *CreateResult) Events() []abci.Event {
	var evs []abci.Event
	if r.Enrolled != nil {
		evs = append(evs, types.EncodeEventMemberUpdated(r.Enrolled))
	}
	return append(evs, types.EncodeEventResolutionCreated(r.Created))
}

func newRequestID(id uint64, previous string, now time.Time) uuid.UUID {
	return uuid.NewSHA1(requestNamespace, []byte(fmt.Sprintf("%d/%s/%d", id, previous, now.UnixNano())))
}
