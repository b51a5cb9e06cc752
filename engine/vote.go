package engine

import (
	"context"
	"fmt"

	"github.com/calehh/council-app/fhe"
	"github.com/calehh/council-app/types"
)

// CastVote adds voter's weight to the yes or no tally of resolution id without learning which.
// A voter that is not an active member is enrolled with weight 1 once the ballot is accepted.
func (e *Engine) CastVote(ctx context.Context, id uint64, voter string, choice []byte, proof []byte) (res *VoteResult, err error) {
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
		return nil, fmt.Errorf("%w: resolution %d is %v", ErrNotActive, id, r.Status)
	}
	if e.now().After(r.EndTime) {
		return nil, fmt.Errorf("%w: resolution %d ended at %v", ErrVotingClosed, id, r.EndTime)
	}

	m, err := e.store.Member(voter)
	if err != nil {
		return
	}
	enroll := m == nil || !m.Active
	weight := uint64(1)
	if !enroll {
		weight = m.Weight
	}
	if params.VotePolicy == types.VotePolicyOnce {
		voted, err := e.store.Voted(id, voter)
		if err != nil {
			return nil, err
		}
		if voted {
			return nil, ErrAlreadyVoted
		}
	}

	ballot, err := e.compute.ValidateEncryptedBool(choice, proof, fhe.Binding{Contract: params.Contract, Identity: voter})
	if err != nil {
		return
	}
	encWeight, err := e.compute.EncryptInteger(weight)
	if err != nil {
		return
	}
	zero, err := e.compute.EncryptInteger(0)
	if err != nil {
		return
	}
	forYes, err := e.compute.Select(ballot, encWeight, zero)
	if err != nil {
		return
	}
	forNo, err := e.compute.Select(ballot, zero, encWeight)
	if err != nil {
		return
	}

	_, enrolled, total, err := e.store.ApplyVote(id, voter, enroll, func(r *types.Resolution) error {
		if r.Status != types.StatusOpen {
			return ErrNotActive
		}
		yes, err := e.compute.Add(fhe.EncryptedInt{Handle: r.YesTally}, forYes)
		if err != nil {
			return err
		}
		no, err := e.compute.Add(fhe.EncryptedInt{Handle: r.NoTally}, forNo)
		if err != nil {
			return err
		}
		r.YesTally = e.compute.ToHandle(yes)
		r.NoTally = e.compute.ToHandle(no)
		return nil
	})
	if err != nil {
		return
	}

	res = &VoteResult{Vote: &types.EventVoteCast{Resolution: id, Voter: voter}}
	if enrolled != nil {
		res.Enrolled = memberEvent(enrolled, total, types.MemberReasonEnroll)
	}
	e.logger.Debug("vote cast", "resolution", id, "voter", voter)
	return
}
