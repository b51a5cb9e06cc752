package engine

import (
	"context"

	"github.com/calehh/council-app/types"
)

// UpsertMember registers or updates a member. Administrator only.
func (e *Engine) UpsertMember(ctx context.Context, caller, addr, name, role string, weight uint64) (*types.EventMemberUpdated, error) {
	params, err := e.store.Params()
	if err != nil {
		return nil, err
	}
	if caller != params.Admin {
		return nil, ErrUnauthorized
	}
	m, total, err := e.store.UpsertMember(addr, weight, name, role)
	if err != nil {
		return nil, err
	}
	e.logger.Info("member updated", "address", addr, "weight", weight, "total", total)
	return memberEvent(m, total, types.MemberReasonUpsert), nil
}

// RemoveMember deactivates a member. Under the admin policy only the administrator may remove.
func (e *Engine) RemoveMember(ctx context.Context, caller, addr string) (*types.EventMemberUpdated, error) {
	params, err := e.store.Params()
	if err != nil {
		return nil, err
	}
	if params.RemovePolicy == types.RemovePolicyAdmin && caller != params.Admin {
		return nil, ErrUnauthorized
	}
	m, total, err := e.store.RemoveMember(addr)
	if err != nil {
		return nil, err
	}
	e.logger.Info("member removed", "address", addr, "total", total)
	return memberEvent(m, total, types.MemberReasonRemove), nil
}
