package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"

	"github.com/calehh/council-app/config"
	"github.com/calehh/council-app/engine"
	"github.com/calehh/council-app/fhe"
	"github.com/calehh/council-app/gateway"
	"github.com/calehh/council-app/state"
	"github.com/calehh/council-app/tx"
	"github.com/calehh/council-app/tx/handler"
	"github.com/calehh/council-app/types"
)

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &CouncilApp{}

// CouncilApp runs the council engine as a replicated state machine. Block time drives the
// engine clock, and decryption requests raised while executing a block are held until the
// block is committed.
type CouncilApp struct {
	cfg    *config.AppConfig
	logger cmtlog.Logger

	store    *state.Store
	engine   *engine.Engine
	clock    *clock.Mock
	outbox   *gateway.Outbox
	txHdlrs  map[tx.CouncilTxType]handler.TxHandler
	queriers map[string]Querier

	chainId string
	lastBlk finalizeBlock
}

func NewCouncilApp(cfg *config.AppConfig, compute fhe.Compute, gw gateway.Gateway, logger cmtlog.Logger) (app *CouncilApp, err error) {
	st, err := state.NewStore(cfg.StateDir(), logger)
	if err != nil {
		return nil, err
	}
	return newCouncilApp(cfg, st, compute, gw, logger)
}

func newCouncilApp(cfg *config.AppConfig, st *state.Store, compute fhe.Compute, gw gateway.Gateway, logger cmtlog.Logger) (app *CouncilApp, err error) {
	logger = logger.With("module", "app")
	chainId, err := st.ChainId()
	if err != nil {
		return nil, err
	}
	clk := clock.NewMock()
	outbox := gateway.NewOutbox(gw, logger)
	app = &CouncilApp{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		engine:   engine.New(st, compute, outbox, clk, logger),
		clock:    clk,
		outbox:   outbox,
		txHdlrs:  handler.NewTxHandlers(logger),
		queriers: make(map[string]Querier),
		chainId:  chainId,
	}
	app.registerQuerier()
	return
}

func (app *CouncilApp) Start(bs *store.BlockStore) {
	height := app.store.Version()
	if height > 0 {
		blk := bs.LoadBlock(height)
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = uint64(height)
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
		app.clock.Set(blk.Time)
	}
}

func (app *CouncilApp) Stop() error {
	var result *multierror.Error
	if n := app.outbox.Discard(); n > 0 {
		app.logger.Info("dropped uncommitted decryption requests", "count", n)
	}
	if err := app.store.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	app.logger.Info("council app stopped")
	return result.ErrorOrNil()
}

func (app *CouncilApp) Engine() *engine.Engine {
	return app.engine
}

func (app *CouncilApp) registerQuerier() {
	app.queriers["/members/"] = NewMemberQuerier(app.store, app.logger)
	app.queriers["/resolutions/"] = NewResolutionQuerier(app.engine, app.logger)
	app.queriers["/totalweight/"] = NewTotalWeightQuerier(app.engine, app.logger)
	app.queriers["/resolutioncount/"] = NewResolutionCountQuerier(app.engine, app.logger)
	app.queriers["/nonce/"] = NewNonceQuerier(app.store, app.logger)
	app.queriers["/params/"] = NewParamsQuerier(app.store, app.logger)
	app.queriers[tx.DecryptionQueryPath] = NewDecryptionQuerier(app.engine, app.logger)
}

func (app *CouncilApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	if len(chain.AppStateBytes) == 0 {
		return nil, errors.New("genesis app_state is empty")
	}
	var genesis types.AppState
	if err = json.Unmarshal(chain.AppStateBytes, &genesis); err != nil {
		return nil, fmt.Errorf("decode app_state: %w", err)
	}
	if genesis.Params.Contract == "" {
		genesis.Params.Contract = chain.ChainId
	}
	if err = genesis.Validate(); err != nil {
		app.logger.Error("InitChain invalid app_state", "err", err)
		return nil, err
	}
	if err = app.store.SetChainId(chain.ChainId); err != nil {
		return nil, err
	}
	if err = app.store.SetParams(genesis.Params); err != nil {
		return nil, err
	}
	for _, m := range genesis.Members {
		if _, _, err = app.store.UpsertMember(m.Address, m.Weight, m.Name, m.Role); err != nil {
			app.logger.Error("InitChain add member fail", "address", m.Address, "err", err)
			return nil, err
		}
	}
	app.chainId = chain.ChainId
	app.clock.Set(chain.Time)
	h := app.store.WorkingHash()
	app.logger.Info("InitChain", "chainId", chain.ChainId, "members", len(genesis.Members), "hash", h)
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *CouncilApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  app.store.Version(),
		LastBlockAppHash: app.store.Hash().Bytes(),
	}, nil
}

func (app *CouncilApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *CouncilApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *CouncilApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *CouncilApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *CouncilApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *CouncilApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
