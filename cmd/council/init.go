package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"

	app_config "github.com/calehh/council-app/config"
	"github.com/calehh/council-app/crypto"
	"github.com/calehh/council-app/types"
)

type printInfo struct {
	ChainID  string          `json:"chain_id"`
	NodeID   string          `json:"node_id"`
	Admin    string          `json:"admin"`
	Gateway  string          `json:"gateway"`
	AppState json.RawMessage `json:"app_state"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize validators's and node's configuration files. The administrator and
decryption gateway keys are created next to them, and every --member flag seeds the
registry as ADDRESS:WEIGHT[:NAME[:ROLE]]. Without members the administrator joins with
weight 1.`,
	Args: cobra.ExactArgs(0),
	RunE: initRun,
}

func init() {
	initCmd.Flags().BoolP(FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(FlagHome, "", "home directory")
	initCmd.Flags().StringArray(FlagMember, nil, "genesis member as ADDRESS:WEIGHT[:NAME[:ROLE]]")
}

func parseGenesisMember(s string) (m types.GenesisMember, err error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 2 {
		err = fmt.Errorf("member %q: expected ADDRESS:WEIGHT", s)
		return
	}
	m.Address = strings.ToUpper(parts[0])
	if m.Weight, err = strconv.ParseUint(parts[1], 10, 64); err != nil {
		err = fmt.Errorf("member %q: %w", s, err)
		return
	}
	if len(parts) > 2 {
		m.Name = parts[2]
	}
	if len(parts) > 3 {
		m.Role = parts[3]
	}
	return
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(FlagHome)
	chainID, _ := cmd.Flags().GetString(FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(FlagOverwrite)
	memberFlags, _ := cmd.Flags().GetStringArray(FlagMember)
	if chainID == "" {
		chainID = fmt.Sprintf("council-chain-%v", rand.Uint64())
	}

	appConfig := app_config.DefaultConfig(home)
	genFile := appConfig.GenesisFile()
	if _, err := os.Stat(genFile); err == nil && !overwrite {
		return fmt.Errorf("genesis file %s already exists, use --%s to replace it", genFile, FlagOverwrite)
	}

	nodeID, pk, err := app_config.InitializeNodeValidatorFiles(appConfig, nil)
	if err != nil {
		return err
	}
	vals := []types.GenesisValidator{{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower}}

	admin, err := crypto.LoadOrGenFilePV(filepath.Join(appConfig.RootDir, "config", app_config.DefaultAdminKeyName))
	if err != nil {
		return fmt.Errorf("admin key: %w", err)
	}
	gw, err := crypto.LoadOrGenFilePV(appConfig.App.GatewayKeyPath())
	if err != nil {
		return fmt.Errorf("gateway key: %w", err)
	}

	members := make([]types.GenesisMember, 0, len(memberFlags))
	for _, s := range memberFlags {
		m, err := parseGenesisMember(s)
		if err != nil {
			return err
		}
		members = append(members, m)
	}
	if len(members) == 0 {
		members = append(members, types.GenesisMember{Address: admin.Address(), Weight: 1, Name: "admin", Role: "admin"})
	}
	appState := types.AppState{
		Params:  appConfig.App.GenesisParams(admin.Address(), gw.Address()),
		Members: members,
	}
	appState.Params.Contract = chainID
	if err = appState.Validate(); err != nil {
		return err
	}
	stateBytes, err := json.Marshal(appState)
	if err != nil {
		return err
	}

	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators:      vals,
		AppState:        stateBytes,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file %v", err)
	}
	if err = app_config.WriteConfigFile(filepath.Join(appConfig.RootDir, "config", "config.toml"), appConfig); err != nil {
		return err
	}
	return displayInfo(printInfo{
		ChainID:  chainID,
		NodeID:   nodeID,
		Admin:    admin.Address(),
		Gateway:  gw.Address(),
		AppState: appGenesis.AppState,
	})
}
