package state

import (
	"fmt"

	"github.com/calehh/council-app/types"
)

func (s *Store) ResolutionCount() (uint64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.getUint(KeyNextId)
}

func (s *Store) Resolution(id uint64) (r *types.Resolution, err error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.resolution(id)
}

// Resolutions lists resolutions by ascending id.
func (s *Store) Resolutions(offset, limit uint64) (rs []*types.Resolution, err error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	count, err := s.getUint(KeyNextId)
	if err != nil {
		return
	}
	end := count
	if limit > 0 && offset+limit < count {
		end = offset + limit
	}
	for id := offset; id < end; id++ {
		r, err := s.resolution(id)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return
}

// CreateResolution stores draft under the next id with status Open. The quorum is bounded
// by the total weight before enrolling creator; when enroll is set the creator is
// auto-enrolled in the same step.
func (s *Store) CreateResolution(draft types.Resolution, enroll bool) (r *types.Resolution, enrolled *Member, total uint64, err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	total, err = s.getUint(KeyTotalWeight)
	if err != nil {
		return
	}
	if draft.RequiredQuorum == 0 || draft.RequiredQuorum > total {
		err = fmt.Errorf("%w: quorum %d, total weight %d", ErrQuorumOutOfRange, draft.RequiredQuorum, total)
		return
	}
	id, err := s.getUint(KeyNextId)
	if err != nil {
		return
	}
	if enroll {
		var ok bool
		enrolled, total, ok, err = s.autoEnroll(draft.Creator)
		if err != nil {
			return
		}
		if !ok {
			enrolled = nil
		}
	}
	draft.Id = id
	draft.Status = types.StatusOpen
	if err = s.setJSON(fmt.Sprintf(KeyResolution, id), &draft); err != nil {
		return
	}
	if err = s.setUint(KeyNextId, id+1); err != nil {
		return
	}
	r = &draft
	return
}

// UpdateResolution applies fn to a copy of resolution id and persists the result. Nothing is
// written when fn fails. A status change must be the single forward step of the lifecycle.
func (s *Store) UpdateResolution(id uint64, fn func(r *types.Resolution) error) (r *types.Resolution, err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	r, err = s.resolution(id)
	if err != nil {
		return
	}
	from := r.Status
	if err = fn(r); err != nil {
		return nil, err
	}
	if err = checkTransition(from, r.Status); err != nil {
		return nil, err
	}
	if err = s.setJSON(fmt.Sprintf(KeyResolution, id), r); err != nil {
		return nil, err
	}
	return
}

// ApplyVote runs fn against resolution id, then records the ballot of voter. When enroll is
// set and voter is not active it is auto-enrolled in the same step. The returned member is
// non-nil only when an enrolment happened.
func (s *Store) ApplyVote(id uint64, voter string, enroll bool, fn func(r *types.Resolution) error) (r *types.Resolution, enrolled *Member, total uint64, err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	r, err = s.resolution(id)
	if err != nil {
		return
	}
	from := r.Status
	if err = fn(r); err != nil {
		return nil, nil, 0, err
	}
	if err = checkTransition(from, r.Status); err != nil {
		return nil, nil, 0, err
	}
	if enroll {
		var ok bool
		enrolled, total, ok, err = s.autoEnroll(voter)
		if err != nil {
			return nil, nil, 0, err
		}
		if !ok {
			enrolled = nil
		}
	}
	if err = s.setJSON(fmt.Sprintf(KeyResolution, id), r); err != nil {
		return nil, nil, 0, err
	}
	key := fmt.Sprintf(KeyVote, id, voter)
	n, err := s.getUint(key)
	if err != nil {
		return nil, nil, 0, err
	}
	if err = s.setUint(key, n+1); err != nil {
		return nil, nil, 0, err
	}
	return
}

// Ballots returns how many ballots voter has cast on resolution id.
func (s *Store) Ballots(id uint64, voter string) (uint64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.getUint(fmt.Sprintf(KeyVote, id, voter))
}

func (s *Store) Voted(id uint64, voter string) (bool, error) {
	n, err := s.Ballots(id, voter)
	return n > 0, err
}

func (s *Store) resolution(id uint64) (*types.Resolution, error) {
	r := new(types.Resolution)
	ok, err := s.getJSON(fmt.Sprintf(KeyResolution, id), r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("resolution %d %w", id, ErrNotFound)
	}
	return r, nil
}

func checkTransition(from, to types.ResolutionStatus) error {
	if from == to || from.Next(to) {
		return nil
	}
	return fmt.Errorf("%w: %v -> %v", ErrIllegalTransition, from, to)
}
