package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/council-app/types"
)

func TestWriteAndReadConfig(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.App.VotePolicy = types.VotePolicyOnce
	cfg.App.VotingDuration = time.Hour
	cfg.App.GatewayURL = "http://gateway:9000"
	cfg.App.GatewayClients = []string{"AB12", "CD34"}

	path := filepath.Join(home, "config", "config.toml")
	require.NoError(t, WriteConfigFile(path, cfg))

	loaded := &Config{
		Config: DefaultCouncilCometConfig(),
		App:    DefaultAppConfig(home),
	}
	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	require.NoError(t, v.Unmarshal(loaded))

	assert.Equal(t, types.VotePolicyOnce, loaded.App.VotePolicy)
	assert.Equal(t, time.Hour, loaded.App.VotingDuration)
	assert.Equal(t, types.DefaultDecryptionTimeout, loaded.App.DecryptionTimeout)
	assert.Equal(t, "http://gateway:9000", loaded.App.GatewayURL)
	assert.Equal(t, 4, loaded.App.GatewayWorkers)
	assert.Equal(t, []string{"AB12", "CD34"}, loaded.App.GatewayClients)
	assert.Equal(t, cfg.Consensus.TimeoutCommit, loaded.Consensus.TimeoutCommit)
}

func TestGenesisParams(t *testing.T) {
	c := DefaultAppConfig(t.TempDir())
	c.RemovePolicy = types.RemovePolicyOpen
	p := c.GenesisParams("ADMIN", "GATEWAY")
	require.NoError(t, p.Validate())
	assert.Equal(t, "ADMIN", p.Admin)
	assert.Equal(t, "GATEWAY", p.Gateway)
	assert.Equal(t, types.RemovePolicyOpen, p.RemovePolicy)
	assert.Equal(t, types.DefaultVotingDuration, p.VotingDuration)
}

func TestAppConfigValidate(t *testing.T) {
	c := DefaultAppConfig("/tmp/council")
	assert.NoError(t, c.ValidateBasic())
	assert.Equal(t, "/tmp/council/config/gateway_key.json", c.GatewayKeyPath())

	c.VotePolicy = "twice"
	assert.Error(t, c.ValidateBasic())

	c = DefaultAppConfig("/tmp/council")
	c.GatewayURL = "http://a"
	c.GatewayListenAddr = ":9000"
	assert.Error(t, c.ValidateBasic())

	c = DefaultAppConfig("/tmp/council")
	c.GatewayListenAddr = ":9000"
	assert.Error(t, c.ValidateBasic())
	c.GatewayClients = []string{"AB12"}
	assert.NoError(t, c.ValidateBasic())
}
