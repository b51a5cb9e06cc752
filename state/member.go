package state

import (
	"encoding/json"
	"fmt"

	"github.com/calehh/council-app/types"
)

const (
	AutoEnrollName = "member"
	AutoEnrollRole = "auto"
)

type Member struct {
	Address string `json:"address"`
	Active  bool   `json:"active"`
	Weight  uint64 `json:"weight"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

func (m *Member) View() types.MemberView {
	return types.MemberView{
		Active: m.Active,
		Weight: m.Weight,
		Name:   m.Name,
		Role:   m.Role,
	}
}

func (m *Member) Clone() *Member {
	n := *m
	return &n
}

// Member returns nil when the address was never registered.
func (s *Store) Member(addr string) (m *Member, err error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.member(addr)
}

func (s *Store) TotalWeight() (uint64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.getUint(KeyTotalWeight)
}

// UpsertMember registers addr or replaces its weight, name and role. A previously
// removed member is reactivated.
func (s *Store) UpsertMember(addr string, weight uint64, name, role string) (m *Member, total uint64, err error) {
	if weight == 0 {
		err = ErrInvalidWeight
		return
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	old, err := s.member(addr)
	if err != nil {
		return
	}
	total, err = s.getUint(KeyTotalWeight)
	if err != nil {
		return
	}
	if old != nil && old.Active {
		total -= old.Weight
	}
	total += weight
	m = &Member{
		Address: addr,
		Active:  true,
		Weight:  weight,
		Name:    name,
		Role:    role,
	}
	err = s.saveMember(m, total)
	return
}

// RemoveMember deactivates addr. The record is kept so the address can be re-registered.
func (s *Store) RemoveMember(addr string) (m *Member, total uint64, err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	m, err = s.member(addr)
	if err != nil {
		return
	}
	if m == nil || !m.Active {
		err = fmt.Errorf("%w: %s", ErrNotAMember, addr)
		return
	}
	p, err := s.params()
	if err != nil {
		return
	}
	if p.Admin == addr {
		err = ErrCannotRemoveSelf
		return
	}
	total, err = s.getUint(KeyTotalWeight)
	if err != nil {
		return
	}
	total -= m.Weight
	m.Active = false
	err = s.saveMember(m, total)
	return
}

// AutoEnroll gives addr weight 1. It is a no-op returning the current record when addr
// is already active.
func (s *Store) AutoEnroll(addr string) (m *Member, total uint64, enrolled bool, err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.autoEnroll(addr)
}

func (s *Store) autoEnroll(addr string) (m *Member, total uint64, enrolled bool, err error) {
	m, err = s.member(addr)
	if err != nil {
		return
	}
	total, err = s.getUint(KeyTotalWeight)
	if err != nil {
		return
	}
	if m != nil && m.Active {
		return
	}
	if m == nil {
		m = &Member{Address: addr, Name: AutoEnrollName, Role: AutoEnrollRole}
	}
	m.Active = true
	m.Weight = 1
	total += 1
	err = s.saveMember(m, total)
	enrolled = err == nil
	return
}

// Members lists registered addresses (active or not) in key order.
func (s *Store) Members(offset, limit int) (members []*Member, err error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	start := []byte(fmt.Sprintf(KeyMember, ""))
	it, err := s.tree.Iterator(start, PrefixEndBytes(start), true)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	i := 0
	for ; it.Valid(); it.Next() {
		if i < offset {
			i++
			continue
		}
		if limit > 0 && len(members) >= limit {
			break
		}
		m := new(Member)
		if err = json.Unmarshal(it.Value(), m); err != nil {
			return nil, err
		}
		members = append(members, m)
		i++
	}
	return members, it.Error()
}

func (s *Store) member(addr string) (*Member, error) {
	m := new(Member)
	ok, err := s.getJSON(fmt.Sprintf(KeyMember, addr), m)
	if err != nil || !ok {
		return nil, err
	}
	return m, nil
}

func (s *Store) saveMember(m *Member, total uint64) error {
	if err := s.setJSON(fmt.Sprintf(KeyMember, m.Address), m); err != nil {
		return err
	}
	return s.setUint(KeyTotalWeight, total)
}
