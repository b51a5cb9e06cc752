package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
)

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

// GenesisMember seeds the registry. Weight 0 is rejected.
type GenesisMember struct {
	Address string `json:"address"`
	Weight  uint64 `json:"weight"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

// AppState is the app_state section of the genesis document.
type AppState struct {
	Params  Params          `json:"params"`
	Members []GenesisMember `json:"members"`
}

func (s *AppState) Validate() error {
	if err := s.Params.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(s.Members))
	for _, m := range s.Members {
		if m.Address == "" {
			return errors.New("genesis member without address")
		}
		if m.Weight == 0 {
			return fmt.Errorf("genesis member %s has zero weight", m.Address)
		}
		if _, ok := seen[m.Address]; ok {
			return fmt.Errorf("duplicate genesis member %s", m.Address)
		}
		seen[m.Address] = struct{}{}
	}
	return nil
}

const CouncilModuleName = "council"
const DefaultPower = 1000
