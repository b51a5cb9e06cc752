package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"

	"github.com/calehh/council-app/types"
)

const (
	DefaultHome           = "$HOME/.council"
	DefaultGatewayKeyName = "gateway_key.json"
	DefaultAdminKeyName   = "admin_key.json"
)

type AppConfig struct {
	Home string `mapstructure:"-"`

	// Genesis defaults, written into app_state by `council init`.
	VotingDuration    time.Duration `mapstructure:"voting_duration"`
	DecryptionTimeout time.Duration `mapstructure:"decryption_timeout"`
	VotePolicy        string        `mapstructure:"vote_policy"`
	RemovePolicy      string        `mapstructure:"remove_policy"`

	// Empty key file: this node does not act as the decryption gateway.
	GatewayKeyFile    string `mapstructure:"gateway_key_file"`
	GatewayURL        string `mapstructure:"gateway_url"`
	GatewayListenAddr string `mapstructure:"gateway_listen_addr"`
	GatewayWorkers    int    `mapstructure:"gateway_workers"`
	// Validator addresses allowed to post to gateway_listen_addr.
	GatewayClients []string `mapstructure:"gateway_clients"`

	ComputeKey    string `mapstructure:"compute_key"`
	ApiListenAddr string `mapstructure:"api_listen_addr"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:              home,
		VotingDuration:    types.DefaultVotingDuration,
		DecryptionTimeout: types.DefaultDecryptionTimeout,
		VotePolicy:        types.VotePolicyAccumulate,
		RemovePolicy:      types.RemovePolicyAdmin,
		GatewayKeyFile:    filepath.Join("config", DefaultGatewayKeyName),
		GatewayWorkers:    4,
		ApiListenAddr:     ":8090",
	}
}

func (c *AppConfig) DataDir() string {
	return filepath.Join(c.Home, "data")
}

func (c *AppConfig) StateDir() string {
	return filepath.Join(c.DataDir(), "council")
}

func (c *AppConfig) ComputeJournalDir() string {
	return filepath.Join(c.DataDir(), "compute")
}

func (c *AppConfig) GatewayJournalDir() string {
	return filepath.Join(c.DataDir(), "gateway")
}

func (c *AppConfig) IndexerDBPath() string {
	return filepath.Join(c.Home, "indexer.db")
}

// GatewayKeyPath resolves the gateway key file against the home directory.
func (c *AppConfig) GatewayKeyPath() string {
	if c.GatewayKeyFile == "" || filepath.IsAbs(c.GatewayKeyFile) {
		return c.GatewayKeyFile
	}
	return filepath.Join(c.Home, c.GatewayKeyFile)
}

// GenesisParams builds the replicated parameters for a new chain.
func (c *AppConfig) GenesisParams(admin, gateway string) types.Params {
	p := types.DefaultParams()
	p.Admin = admin
	p.Gateway = gateway
	if c.VotingDuration > 0 {
		p.VotingDuration = c.VotingDuration
	}
	if c.DecryptionTimeout > 0 {
		p.DecryptionTimeout = c.DecryptionTimeout
	}
	if c.VotePolicy != "" {
		p.VotePolicy = c.VotePolicy
	}
	if c.RemovePolicy != "" {
		p.RemovePolicy = c.RemovePolicy
	}
	return p
}

func (c *AppConfig) ValidateBasic() error {
	if c.GatewayWorkers < 0 {
		return errors.New("app.gateway_workers can't be negative")
	}
	if c.GatewayURL != "" && c.GatewayListenAddr != "" {
		return errors.New("app.gateway_url and app.gateway_listen_addr are exclusive")
	}
	if c.GatewayListenAddr != "" && len(c.GatewayClients) == 0 {
		return errors.New("app.gateway_listen_addr requires app.gateway_clients")
	}
	switch c.VotePolicy {
	case "", types.VotePolicyAccumulate, types.VotePolicyOnce:
	default:
		return fmt.Errorf("app.vote_policy: unknown policy %q", c.VotePolicy)
	}
	switch c.RemovePolicy {
	case "", types.RemovePolicyAdmin, types.RemovePolicyOpen:
	default:
		return fmt.Errorf("app.remove_policy: unknown policy %q", c.RemovePolicy)
	}
	return nil
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = os.ExpandEnv(DefaultHome)
	}
	config := &Config{
		DefaultCouncilCometConfig(),
		DefaultAppConfig(home),
	}
	config.SetRoot(home)
	_ = os.MkdirAll(home+"/config", 0755)
	return config
}

func (c *Config) ValidateBasic() error {
	if err := c.Config.ValidateBasic(); err != nil {
		return err
	}
	return c.App.ValidateBasic()
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultCouncilCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}
