package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	cmtcrypto "github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"

	"github.com/calehh/council-app/types"
)

var (
	ErrRequestMismatch = errors.New("request does not match a pending decryption")
	ErrUnauthenticated = errors.New("request signature invalid")
	ErrUnknownClient   = errors.New("request signer not allowed")
	ErrNotYetPending   = errors.New("decryption not yet pending")
)

// Verifier reads the committed decryption state of a correlation.
type Verifier interface {
	DecryptionTarget(ctx context.Context, correlation uint64) (*types.DecryptionTarget, error)
}

type VerifierFunc func(ctx context.Context, correlation uint64) (*types.DecryptionTarget, error)

func (f VerifierFunc) DecryptionTarget(ctx context.Context, correlation uint64) (*types.DecryptionTarget, error) {
	return f(ctx, correlation)
}

// Match accepts the request only if it is the outstanding request of a pending resolution
// and asks for exactly its tallies.
func (r *Request) Match(t *types.DecryptionTarget) error {
	if t == nil || t.Resolution != r.Correlation {
		return fmt.Errorf("%w: no resolution %d", ErrRequestMismatch, r.Correlation)
	}
	if t.Status == types.StatusClosed && t.RequestId == r.ID.String() {
		// the close that issued this request is not committed yet
		return fmt.Errorf("%w: resolution %d", ErrNotYetPending, t.Resolution)
	}
	if t.Status != types.StatusDecryptionPending {
		return fmt.Errorf("%w: resolution %d is %v", ErrRequestMismatch, t.Resolution, t.Status)
	}
	if t.RequestId != r.ID.String() {
		return fmt.Errorf("%w: resolution %d awaits request %s", ErrRequestMismatch, t.Resolution, t.RequestId)
	}
	if len(r.Handles) != len(t.Handles) {
		return fmt.Errorf("%w: want %d handles, got %d", ErrRequestMismatch, len(t.Handles), len(r.Handles))
	}
	for i, h := range t.Handles {
		if r.Handles[i] != h {
			return fmt.Errorf("%w: handle %d is not a tally of resolution %d", ErrRequestMismatch, i, t.Resolution)
		}
	}
	return nil
}

// SignedRequest is the body posted to a gateway Server. Sig covers the JSON of Request.
type SignedRequest struct {
	Request Request `json:"request"`
	PubKey  []byte  `json:"pubkey"`
	Sig     []byte  `json:"sig"`
}

func SignRequest(req Request, key cmtcrypto.PrivKey) (*SignedRequest, error) {
	dat, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(dat)
	if err != nil {
		return nil, err
	}
	return &SignedRequest{
		Request: req,
		PubKey:  key.PubKey().Bytes(),
		Sig:     sig,
	}, nil
}

// Verify checks the signature and returns the signer address.
func (s *SignedRequest) Verify() (string, error) {
	if len(s.PubKey) != ed25519.PubKeySize {
		return "", fmt.Errorf("%w: bad pubkey", ErrUnauthenticated)
	}
	dat, err := json.Marshal(s.Request)
	if err != nil {
		return "", err
	}
	pk := ed25519.PubKey(s.PubKey)
	if !pk.VerifySignature(dat, s.Sig) {
		return "", ErrUnauthenticated
	}
	return pk.Address().String(), nil
}
