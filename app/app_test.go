package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtcrypto "github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/council-app/config"
	"github.com/calehh/council-app/fhe"
	"github.com/calehh/council-app/gateway"
	"github.com/calehh/council-app/state"
	"github.com/calehh/council-app/tx"
	"github.com/calehh/council-app/types"
)

const chainId = "council-test-chain"

type recorder struct {
	mtx  sync.Mutex
	reqs []gateway.Request
}

func (r *recorder) RequestDecryption(ctx context.Context, req gateway.Request) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.reqs = append(r.reqs, req)
	return nil
}

func (r *recorder) len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.reqs)
}

type testNode struct {
	t      *testing.T
	cfg    *config.AppConfig
	app    *CouncilApp
	sealed *fhe.Sealed
	gw     *recorder
	now    time.Time
	height int64
	nonces map[string]uint64

	admin, gateway, alice, bob, carol cmtcrypto.PrivKey
}

func addr(k cmtcrypto.PrivKey) string {
	return k.PubKey().Address().String()
}

func newTestNode(t *testing.T) *testNode {
	n := &testNode{
		t:       t,
		cfg:     config.DefaultAppConfig(t.TempDir()),
		sealed:  fhe.NewSealed(fhe.DevKey(), nil),
		gw:      &recorder{},
		now:     time.Unix(1_700_000_000, 0),
		nonces:  make(map[string]uint64),
		admin:   ed25519.GenPrivKey(),
		gateway: ed25519.GenPrivKey(),
		alice:   ed25519.GenPrivKey(),
		bob:     ed25519.GenPrivKey(),
		carol:   ed25519.GenPrivKey(),
	}
	n.open()

	p := n.cfg.GenesisParams(addr(n.admin), addr(n.gateway))
	p.Contract = ""
	p.VotingDuration = time.Hour
	appState, err := json.Marshal(types.AppState{
		Params: p,
		Members: []types.GenesisMember{
			{Address: addr(n.alice), Weight: 5, Name: "alice", Role: "chair"},
			{Address: addr(n.bob), Weight: 3, Name: "bob", Role: "director"},
		},
	})
	require.NoError(t, err)
	res, err := n.app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		Time:          n.now,
		ChainId:       chainId,
		AppStateBytes: appState,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AppHash)
	return n
}

func (n *testNode) open() {
	var err error
	n.app, err = NewCouncilApp(n.cfg, n.sealed, n.gw, cmtlog.NewNopLogger())
	require.NoError(n.t, err)
}

func (n *testNode) sign(key cmtcrypto.PrivKey, tp tx.CouncilTxType, payload any) []byte {
	sender := addr(key)
	btx := tx.NewTx(tp, n.nonces[sender], payload)
	n.nonces[sender]++
	require.NoError(n.t, btx.Sign(chainId, key))
	dat, err := tx.MarshalTx(btx)
	require.NoError(n.t, err)
	return dat
}

func (n *testNode) block(txs ...[]byte) []*abcitypes.ExecTxResult {
	ctx := context.Background()
	n.height++
	n.now = n.now.Add(time.Second)
	res, err := n.app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{
		Txs:    txs,
		Height: n.height,
		Time:   n.now,
	})
	require.NoError(n.t, err)
	_, err = n.app.Commit(ctx, &abcitypes.RequestCommit{})
	require.NoError(n.t, err)
	return res.TxResults
}

func (n *testNode) vote(key cmtcrypto.PrivKey, id uint64, yes bool) []byte {
	choice, proof, err := fhe.SealBool(fhe.DevKey(), yes, fhe.Binding{Contract: chainId, Identity: addr(key)})
	require.NoError(n.t, err)
	return n.sign(key, tx.TxTypeCastVote, &tx.CastVoteTx{Resolution: id, Choice: choice, Proof: proof})
}

func (n *testNode) query(path string, data []byte, v any) {
	res, err := n.app.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: data})
	require.NoError(n.t, err)
	require.Equal(n.t, CodeOK, res.Code, res.Log)
	require.NoError(n.t, json.Unmarshal(res.Value, v))
}

func TestResolutionThroughBlocks(t *testing.T) {
	n := newTestNode(t)

	res := n.block(n.sign(n.alice, tx.TxTypeCreateResolution, &tx.CreateResolutionTx{
		Title:          "Budget",
		Description:    "Approve the budget",
		RequiredQuorum: 5,
	}))
	require.Equal(t, CodeOK, res[0].Code, res[0].Log)
	assert.Equal(t, types.EventResolutionCreatedType, res[0].Events[0].Type)

	res = n.block(n.vote(n.alice, 0, true), n.vote(n.bob, 0, false), n.vote(n.carol, 0, true))
	for _, r := range res {
		require.Equal(t, CodeOK, r.Code, r.Log)
	}
	var carol types.MemberView
	n.query("/members/", []byte(addr(n.carol)), &carol)
	assert.True(t, carol.Active)
	assert.Equal(t, uint64(1), carol.Weight)

	var total uint64
	n.query("/totalweight", nil, &total)
	assert.Equal(t, uint64(9), total)

	res = n.block(n.sign(n.alice, tx.TxTypeCloseResolution, &tx.CloseResolutionTx{Resolution: 0}))
	require.Equal(t, CodeOK, res[0].Code, res[0].Log)
	require.Equal(t, 1, n.gw.len())

	var view types.ResolutionView
	n.query("/resolutions/", []byte{0}, &view)
	assert.Equal(t, types.StatusDecryptionPending, view.Status)
	assert.Nil(t, view.FinalYes)

	req := n.gw.reqs[0]
	assert.Equal(t, uint64(0), req.Correlation)
	var target types.DecryptionTarget
	n.query(tx.DecryptionQueryPath, []byte{0, 0, 0, 0, 0, 0, 0, 0}, &target)
	require.NoError(t, req.Match(&target))
	plain, err := n.sealed.Decrypt(req.Handles)
	require.NoError(t, err)
	assert.Equal(t, []uint64{6, 3}, plain)

	// only the gateway may bring plaintexts into the mempool
	leak := tx.NewTx(tx.TxTypeDecryptionResult, n.nonces[addr(n.alice)], &tx.DecryptionResultTx{Correlation: 0, Plaintexts: plain})
	require.NoError(t, leak.Sign(chainId, n.alice))
	dat, err := tx.MarshalTx(leak)
	require.NoError(t, err)
	check, err := n.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: dat})
	require.NoError(t, err)
	assert.Equal(t, CodeNotGateway, check.Code)

	res = n.block(
		n.sign(n.alice, tx.TxTypeDecryptionResult, &tx.DecryptionResultTx{Correlation: 0, Plaintexts: plain}),
		n.sign(n.gateway, tx.TxTypeDecryptionResult, &tx.DecryptionResultTx{Correlation: 0, Plaintexts: plain}),
	)
	assert.Equal(t, CodeNotGateway, res[0].Code)
	require.Equal(t, CodeOK, res[1].Code, res[1].Log)

	n.query("/resolutions/", []byte{0}, &view)
	assert.Equal(t, types.StatusResolved, view.Status)
	var resolved types.DecryptionTarget
	n.query(tx.DecryptionQueryPath, []byte{0}, &resolved)
	assert.Empty(t, resolved.Handles)
	assert.ErrorIs(t, req.Match(&resolved), gateway.ErrRequestMismatch)
	require.NotNil(t, view.Passed)
	assert.True(t, *view.Passed)
	assert.Equal(t, uint64(6), *view.FinalYes)
	assert.Equal(t, uint64(3), *view.FinalNo)
}

func TestRejectedTxConsumesOnlyNonce(t *testing.T) {
	n := newTestNode(t)

	res := n.block(n.sign(n.alice, tx.TxTypeUpsertMember, &tx.UpsertMemberTx{Member: addr(n.carol), Weight: 4}))
	assert.Equal(t, CodeUnauthorized, res[0].Code)

	var nonce uint64
	n.query("/nonce/", []byte(addr(n.alice)), &nonce)
	assert.Equal(t, uint64(1), nonce)
	var total uint64
	n.query("/totalweight/", nil, &total)
	assert.Equal(t, uint64(8), total)

	res = n.block(n.sign(n.admin, tx.TxTypeUpsertMember, &tx.UpsertMemberTx{Member: addr(n.carol), Weight: 4}))
	require.Equal(t, CodeOK, res[0].Code, res[0].Log)
	n.query("/totalweight/", nil, &total)
	assert.Equal(t, uint64(12), total)
}

func TestNonceAndSignatureChecks(t *testing.T) {
	n := newTestNode(t)
	ctx := context.Background()

	first := n.sign(n.alice, tx.TxTypeCloseResolution, &tx.CloseResolutionTx{Resolution: 7})
	second := n.sign(n.alice, tx.TxTypeCloseResolution, &tx.CloseResolutionTx{Resolution: 7})

	check, err := n.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: second})
	require.NoError(t, err)
	assert.Equal(t, CodeOK, check.Code, check.Log)

	res := n.block(second, first)
	assert.Equal(t, CodeInvalidNonce, res[0].Code)
	assert.Equal(t, CodeNotFound, res[1].Code)

	btx := tx.NewTx(tx.TxTypeCloseResolution, 1, &tx.CloseResolutionTx{Resolution: 7})
	require.NoError(t, btx.Sign("other-chain", n.alice))
	dat, err := tx.MarshalTx(btx)
	require.NoError(t, err)
	check, err = n.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: dat})
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidSignature, check.Code)

	check, err = n.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: []byte("{")})
	require.NoError(t, err)
	assert.Equal(t, CodeUnsupportedTx, check.Code)

	proposal, err := n.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Txs: [][]byte{dat}})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_REJECT, proposal.Status)
}

func TestCommitReleasesRequestsAfterBlock(t *testing.T) {
	n := newTestNode(t)
	n.block(n.sign(n.bob, tx.TxTypeCreateResolution, &tx.CreateResolutionTx{Title: "t", Description: "d", RequiredQuorum: 1}))

	ctx := context.Background()
	n.height++
	n.now = n.now.Add(time.Second)
	res, err := n.app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{
		Txs:    [][]byte{n.sign(n.bob, tx.TxTypeCloseResolution, &tx.CloseResolutionTx{Resolution: 0})},
		Height: n.height,
		Time:   n.now,
	})
	require.NoError(t, err)
	require.Equal(t, CodeOK, res.TxResults[0].Code, res.TxResults[0].Log)
	assert.Equal(t, 0, n.gw.len())

	_, err = n.app.Commit(ctx, &abcitypes.RequestCommit{})
	require.NoError(t, err)
	assert.Equal(t, 1, n.gw.len())
}

func TestRestartKeepsState(t *testing.T) {
	n := newTestNode(t)
	n.block(n.sign(n.alice, tx.TxTypeCreateResolution, &tx.CreateResolutionTx{Title: "t", Description: "d", RequiredQuorum: 2}))
	info, err := n.app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	require.NoError(t, n.app.Stop())

	n.open()
	again, err := n.app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, info.LastBlockHeight, again.LastBlockHeight)
	assert.Equal(t, info.LastBlockAppHash, again.LastBlockAppHash)

	// chain id survives, so signatures still verify
	res := n.block(n.vote(n.bob, 0, true))
	assert.Equal(t, CodeOK, res[0].Code, res[0].Log)

	var count uint64
	n.query("/resolutioncount/", nil, &count)
	assert.Equal(t, uint64(1), count)
}

func TestInitChainRejectsBadAppState(t *testing.T) {
	st, err := state.NewMemStore(cmtlog.NewNopLogger())
	require.NoError(t, err)
	app, err := newCouncilApp(config.DefaultAppConfig(t.TempDir()), st, fhe.NewSealed(fhe.DevKey(), nil), gateway.NewDiscard(cmtlog.NewNopLogger()), cmtlog.NewNopLogger())
	require.NoError(t, err)

	_, err = app.InitChain(context.Background(), &abcitypes.RequestInitChain{ChainId: chainId})
	assert.Error(t, err)

	dat, err := json.Marshal(types.AppState{Params: types.DefaultParams()})
	require.NoError(t, err)
	_, err = app.InitChain(context.Background(), &abcitypes.RequestInitChain{ChainId: chainId, AppStateBytes: dat})
	assert.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeOK, ErrorCode(nil))
	assert.Equal(t, CodeNotFound, ErrorCode(state.ErrNotFound))
	assert.Equal(t, CodeInvalidNonce, ErrorCode(tx.ErrTxNonceInvalid))
	assert.Equal(t, CodeInternal, ErrorCode(assert.AnError))
}
