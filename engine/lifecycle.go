package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/calehh/council-app/gateway"
	"github.com/calehh/council-app/state"
	"github.com/calehh/council-app/types"
)

// CreateResolution opens a resolution for the configured voting duration with both tallies at
// encrypted zero. The caller is auto-enrolled if needed; the quorum is bounded by the total
// weight before that enrolment.
func (e *Engine) CreateResolution(ctx context.Context, caller, title, description string, quorum uint64) (res *CreateResult, err error) {
	params, err := e.store.Params()
	if err != nil {
		return
	}
	zero, err := e.compute.EncryptInteger(0)
	if err != nil {
		return
	}
	m, err := e.store.Member(caller)
	if err != nil {
		return
	}
	now := e.now()
	handle := e.compute.ToHandle(zero)
	r, enrolled, total, err := e.store.CreateResolution(types.Resolution{
		Title:          title,
		Description:    description,
		StartTime:      now,
		EndTime:        now.Add(params.VotingDuration),
		YesTally:       handle,
		NoTally:        handle,
		Creator:        caller,
		RequiredQuorum: quorum,
	}, m == nil || !m.Active)
	if err != nil {
		return
	}
	res = &CreateResult{
		Created: &types.EventResolutionCreated{
			Resolution:     r.Id,
			Creator:        caller,
			Title:          r.Title,
			Description:    r.Description,
			StartTime:      r.StartTime,
			EndTime:        r.EndTime,
			RequiredQuorum: r.RequiredQuorum,
		},
	}
	if enrolled != nil {
		res.Enrolled = memberEvent(enrolled, total, types.MemberReasonEnroll)
	}
	e.logger.Info("resolution created", "resolution", r.Id, "creator", caller, "quorum", quorum, "end", r.EndTime)
	return
}

// CloseResolution ends voting and asks the gateway to decrypt both tallies. The creator may
// close early; anyone may close after the end time. If the gateway refuses the request the
// resolution stays Closed and can be requeued.
func (e *Engine) CloseResolution(ctx context.Context, id uint64, caller string) (ev *types.EventResolutionClosed, err error) {
	unlock := e.lock(id)
	defer unlock()

	params, err := e.store.Params()
	if err != nil {
		return
	}
	r, err := e.store.Resolution(id)
	if err != nil {
		return
	}
	if r.Status != types.StatusOpen {
		return nil, fmt.Errorf("%w: resolution %d is %v", ErrAlreadyClosed, id, r.Status)
	}
	now := e.now()
	if !now.After(r.EndTime) && caller != r.Creator {
		return nil, fmt.Errorf("%w: resolution %d ends at %v", ErrNotYetClosable, id, r.EndTime)
	}

	req := e.newRequest(r, now, params)
	r, err = e.store.UpdateResolution(id, func(r *types.Resolution) error {
		r.Status = types.StatusClosed
		r.RequestId = req.ID.String()
		r.Deadline = req.Deadline
		return nil
	})
	if err != nil {
		return
	}
	ev = &types.EventResolutionClosed{
		Resolution: id,
		Closer:     caller,
		Status:     types.StatusClosed,
		RequestId:  r.RequestId,
		Deadline:   r.Deadline,
	}
	if err := e.gateway.RequestDecryption(ctx, req); err != nil {
		e.logger.Error("decryption request refused", "resolution", id, "request", req.ID, "err", err)
		return ev, nil
	}
	if _, err = e.store.UpdateResolution(id, func(r *types.Resolution) error {
		r.Status = types.StatusDecryptionPending
		return nil
	}); err != nil {
		return nil, err
	}
	ev.Status = types.StatusDecryptionPending
	e.logger.Info("resolution closed", "resolution", id, "closer", caller, "request", req.ID)
	return
}

// RequeueDecryption re-issues the decryption request of a resolution whose result never
// arrived. Only the administrator may requeue.
func (e *Engine) RequeueDecryption(ctx context.Context, id uint64, caller string) (ev *types.EventResolutionClosed, err error) {
	params, err := e.store.Params()
	if err != nil {
		return
	}
	if caller != params.Admin {
		return nil, ErrUnauthorized
	}
	unlock := e.lock(id)
	defer unlock()

	r, err := e.store.Resolution(id)
	if err != nil {
		return
	}
	if r.Status != types.StatusClosed && r.Status != types.StatusDecryptionPending {
		return nil, fmt.Errorf("%w: resolution %d is %v", ErrNothingPending, id, r.Status)
	}
	req := e.newRequest(r, e.now(), params)
	if err = e.gateway.RequestDecryption(ctx, req); err != nil {
		return nil, err
	}
	r, err = e.store.UpdateResolution(id, func(r *types.Resolution) error {
		r.Status = types.StatusDecryptionPending
		r.RequestId = req.ID.String()
		r.Deadline = req.Deadline
		return nil
	})
	if err != nil {
		return
	}
	e.logger.Info("decryption requeued", "resolution", id, "request", req.ID)
	return &types.EventResolutionClosed{
		Resolution: id,
		Closer:     caller,
		Status:     r.Status,
		RequestId:  r.RequestId,
		Deadline:   r.Deadline,
	}, nil
}

// Finalize records the decrypted tallies delivered by the gateway and settles the outcome:
// passed when yes outweighs no and the turnout reaches the quorum.
func (e *Engine) Finalize(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) (ev *types.EventResolutionFinalized, err error) {
	params, err := e.store.Params()
	if err != nil {
		return
	}
	if caller != params.Gateway {
		return nil, ErrNotGateway
	}
	unlock := e.lock(correlation)
	defer unlock()

	r, err := e.store.Resolution(correlation)
	if errors.Is(err, state.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCorrelation, correlation)
	}
	if err != nil {
		return
	}
	if r.Status != types.StatusDecryptionPending {
		return nil, fmt.Errorf("%w: resolution %d is %v", ErrUnknownCorrelation, correlation, r.Status)
	}
	if len(plaintexts) != 2 {
		return nil, fmt.Errorf("%w: want 2, got %d", ErrBadPlaintexts, len(plaintexts))
	}
	yes, no := plaintexts[0], plaintexts[1]
	turnout := yes + no
	passed := yes > no && turnout >= yes && turnout >= r.RequiredQuorum
	if _, err = e.store.UpdateResolution(correlation, func(r *types.Resolution) error {
		r.Status = types.StatusResolved
		r.FinalYes = yes
		r.FinalNo = no
		r.Passed = passed
		return nil
	}); err != nil {
		return
	}
	e.logger.Info("resolution finalized", "resolution", correlation, "passed", passed)
	return &types.EventResolutionFinalized{
		Resolution: correlation,
		Passed:     passed,
		YesVotes:   yes,
		NoVotes:    no,
	}, nil
}

func (e *Engine) OnDecryptionResolved(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
	_, err := e.Finalize(ctx, caller, correlation, plaintexts)
	return err
}

func (e *Engine) newRequest(r *types.Resolution, now time.Time, params types.Params) gateway.Request {
	return gateway.Request{
		ID:          newRequestID(r.Id, r.RequestId, now),
		Handles:     []common.Hash{r.YesTally, r.NoTally},
		CallbackID:  CallbackID,
		Correlation: r.Id,
		Deadline:    now.Add(params.DecryptionTimeout),
	}
}
