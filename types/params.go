package types

import (
	"errors"
	"fmt"
	"time"
)

const (
	VotePolicyAccumulate = "accumulate"
	VotePolicyOnce       = "once"

	RemovePolicyAdmin = "admin"
	RemovePolicyOpen  = "open"

	DefaultVotingDuration    = 7 * 24 * time.Hour
	DefaultDecryptionTimeout = 100 * time.Second
)

// Params are fixed at genesis and replicated in state.
type Params struct {
	Admin             string        `json:"admin"`
	Gateway           string        `json:"gateway"`
	Contract          string        `json:"contract"`
	VotingDuration    time.Duration `json:"votingDuration"`
	DecryptionTimeout time.Duration `json:"decryptionTimeout"`
	VotePolicy        string        `json:"votePolicy"`
	RemovePolicy      string        `json:"removePolicy"`
}

func DefaultParams() Params {
	return Params{
		Contract:          CouncilModuleName,
		VotingDuration:    DefaultVotingDuration,
		DecryptionTimeout: DefaultDecryptionTimeout,
		VotePolicy:        VotePolicyAccumulate,
		RemovePolicy:      RemovePolicyAdmin,
	}
}

func (p *Params) Validate() error {
	if p.Admin == "" {
		return errors.New("params: admin is required")
	}
	if p.Gateway == "" {
		return errors.New("params: gateway is required")
	}
	if p.VotingDuration <= 0 {
		return fmt.Errorf("params: voting duration must be positive (got %v)", p.VotingDuration)
	}
	if p.DecryptionTimeout <= 0 {
		return fmt.Errorf("params: decryption timeout must be positive (got %v)", p.DecryptionTimeout)
	}
	switch p.VotePolicy {
	case VotePolicyAccumulate, VotePolicyOnce:
	default:
		return fmt.Errorf("params: unknown vote policy %q", p.VotePolicy)
	}
	switch p.RemovePolicy {
	case RemovePolicyAdmin, RemovePolicyOpen:
	default:
		return fmt.Errorf("params: unknown remove policy %q", p.RemovePolicy)
	}
	return nil
}
