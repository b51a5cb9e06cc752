package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/calehh/council-app/app"
	app_config "github.com/calehh/council-app/config"
	"github.com/calehh/council-app/crypto"
	"github.com/calehh/council-app/fhe"
	"github.com/calehh/council-app/gateway"
	"github.com/calehh/council-app/indexer"
	"github.com/calehh/council-app/tx"
)

var homeDir string

var clCmd = &cobra.Command{
	Use:   "council",
	Short: "Council runs a confidential weighted voting chain",
	Long: `A CometBFT chain where registered members vote on resolutions with encrypted
ballots. Tallies stay encrypted until a resolution is closed and the decryption
gateway reveals the final counts.`,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	clCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

func loadConfig(home string) (*app_config.Config, error) {
	appConfig := &app_config.Config{
		Config: app_config.DefaultCouncilCometConfig(),
		App:    app_config.DefaultAppConfig(home),
	}
	appConfig.SetRoot(home)
	viper.SetConfigFile(fmt.Sprintf("%s/%s", home, "config/config.toml"))
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := viper.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	appConfig.App.Home = home
	if err := appConfig.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return appConfig, nil
}

func rpcURL(listenAddr string) (string, error) {
	u, err := url.Parse(listenAddr)
	if err != nil {
		return "", err
	}
	u.Scheme = "http"
	return u.String(), nil
}

// closers are released in reverse order on shutdown.
type closers []func() error

func (c closers) Close() error {
	var result *multierror.Error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// newGateway picks the decryption gateway of this node: a remote service, the in-process
// gateway when the node holds the gateway key, or none.
func newGateway(cfg *app_config.Config, chainId, rpc string, decrypter fhe.Decrypter, logger cmtlog.Logger) (gw gateway.Gateway, local *gateway.Local, release closers, err error) {
	if cfg.App.GatewayURL != "" {
		node, err := crypto.LoadFilePV(cfg.PrivValidatorKeyFile())
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using remote decryption gateway", "url", cfg.App.GatewayURL, "client", node.Address())
		return gateway.NewHTTP(cfg.App.GatewayURL, node.PrivKey(), logger), nil, nil, nil
	}
	keyPath := cfg.App.GatewayKeyPath()
	if keyPath == "" {
		return gateway.NewDiscard(logger), nil, nil, nil
	}
	pv, err := crypto.LoadFilePV(keyPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no gateway key, decryption requests are left to other nodes", "path", keyPath)
		return gateway.NewDiscard(logger), nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	cli, err := tx.NewClient(rpc, chainId, pv.PrivKey(), logger)
	if err != nil {
		return nil, nil, nil, err
	}
	journal, err := leveldb.OpenFile(cfg.App.GatewayJournalDir(), nil)
	if err != nil {
		return nil, nil, nil, err
	}
	local = gateway.NewLocal(pv.Address(), decrypter, cli, cli, journal, logger, gateway.WithWorkers(cfg.App.GatewayWorkers))
	release = closers{journal.Close, local.Close}
	logger.Info("operating decryption gateway", "identity", pv.Address())
	return local, local, release, nil
}

func run(cmd *cobra.Command, args []string) {
	if homeDir == "" {
		homeDir = os.ExpandEnv(app_config.DefaultHome)
	}
	appConfig, err := loadConfig(homeDir)
	if err != nil {
		log.Fatal(err)
	}

	pv := privval.LoadFilePV(
		appConfig.PrivValidatorKeyFile(),
		appConfig.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(appConfig.NodeKeyFile())
	if err != nil {
		log.Fatalf("failed to load node's key: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(appConfig.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	genDoc, err := cmttypes.GenesisDocFromFile(appConfig.GenesisFile())
	if err != nil {
		log.Fatalf("read genesis err: %v", err)
	}
	rpc, err := rpcURL(appConfig.RPC.ListenAddress)
	if err != nil {
		log.Fatalf("parse rpc url err: %v", err)
	}

	var release closers
	computeKey, err := fhe.ParseKey(appConfig.App.ComputeKey)
	if err != nil {
		log.Fatalf("invalid compute key: %v", err)
	}
	computeDB, err := leveldb.OpenFile(appConfig.App.ComputeJournalDir(), nil)
	if err != nil {
		log.Fatalf("open compute journal err: %v", err)
	}
	release = append(release, computeDB.Close)
	sealed := fhe.NewSealed(computeKey, computeDB)

	gw, local, gwRelease, err := newGateway(appConfig, genDoc.ChainID, rpc, sealed, logger)
	if err != nil {
		log.Fatalf("new gateway err: %v", err)
	}
	release = append(release, gwRelease...)

	councilApp, err := app.NewCouncilApp(appConfig.App, sealed, gw, logger)
	if err != nil {
		log.Fatalf("new App err: %v", err)
	}
	release = append(release, councilApp.Stop)

	node, err := nm.NewNode(
		appConfig.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(councilApp),
		nm.DefaultGenesisDocProviderFunc(appConfig.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(appConfig.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("Creating node: %v", err)
	}

	councilApp.Start(node.BlockStore())
	if err = node.Start(); err != nil {
		log.Fatalf("start comet node err %s", err.Error())
	}
	if local != nil {
		if _, err = local.Replay(); err != nil {
			logger.Error("replay decryption requests fail", "err", err)
		}
		if appConfig.App.GatewayListenAddr != "" {
			srv := gateway.NewServer(appConfig.App.GatewayListenAddr, local, appConfig.App.GatewayClients, logger)
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gateway server stopped", "err", err)
				}
			}()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	idx, err := indexer.NewChainIndexer(logger, appConfig.App.IndexerDBPath(), rpc)
	if err != nil {
		log.Fatalf("new chain indexer err %s", err.Error())
	}
	release = append(release, idx.Close)
	go idx.Start(ctx)
	if appConfig.App.ApiListenAddr != "" {
		svc := indexer.NewService(appConfig.App.ApiListenAddr, idx)
		go func() {
			if err := svc.Start(); err != nil {
				logger.Error("api service stopped", "err", err)
			}
		}()
	}

	defer func() {
		log.Println("shut down...")
		cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := node.Stop(); err != nil {
				logger.Error("stop comet node err", "err", err)
			}
			node.Wait()
			if err := release.Close(); err != nil {
				logger.Error("release resources err", "err", err)
			}
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
