package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/council-app/types"
)

type fakeSource struct {
	blocks map[int64][]*abci.ExecTxResult
	latest int64
}

func (f *fakeSource) Status(ctx context.Context) (*coretypes.ResultStatus, error) {
	return &coretypes.ResultStatus{SyncInfo: coretypes.SyncInfo{LatestBlockHeight: f.latest}}, nil
}

func (f *fakeSource) BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error) {
	return &coretypes.ResultBlockResults{Height: *height, TxsResults: f.blocks[*height]}, nil
}

func ok(events ...abci.Event) *abci.ExecTxResult {
	return &abci.ExecTxResult{Events: events}
}

func chainHistory() *fakeSource {
	start := time.Unix(1_700_000_000, 0)
	return &fakeSource{
		latest: 4,
		blocks: map[int64][]*abci.ExecTxResult{
			1: {
				ok(types.EncodeEventMemberUpdated(&types.EventMemberUpdated{Address: "ALICE", Active: true, Weight: 5, Name: "alice", TotalWeight: 5, Reason: types.MemberReasonUpsert})),
				ok(types.EncodeEventMemberUpdated(&types.EventMemberUpdated{Address: "BOB", Active: true, Weight: 3, Name: "bob", TotalWeight: 8, Reason: types.MemberReasonUpsert})),
				ok(types.EncodeEventResolutionCreated(&types.EventResolutionCreated{
					Resolution: 0, Creator: "ALICE", Title: "Budget", Description: "d",
					StartTime: start, EndTime: start.Add(time.Hour), RequiredQuorum: 5,
				})),
			},
			2: {
				ok(types.EncodeEventVoteCast(&types.EventVoteCast{Resolution: 0, Voter: "ALICE"})),
				{Code: 12, Events: []abci.Event{types.EncodeEventVoteCast(&types.EventVoteCast{Resolution: 0, Voter: "MALLORY"})}},
				ok(
					types.EncodeEventMemberUpdated(&types.EventMemberUpdated{Address: "CAROL", Active: true, Weight: 1, Name: "member", Role: "auto", TotalWeight: 9, Reason: types.MemberReasonEnroll}),
					types.EncodeEventVoteCast(&types.EventVoteCast{Resolution: 0, Voter: "CAROL"}),
				),
			},
			3: {
				ok(types.EncodeEventResolutionClosed(&types.EventResolutionClosed{
					Resolution: 0, Closer: "ALICE", Status: types.StatusDecryptionPending,
					RequestId: "req-1", Deadline: start.Add(2 * time.Hour),
				})),
			},
			4: {
				ok(types.EncodeEventResolutionFinalized(&types.EventResolutionFinalized{Resolution: 0, Passed: true, YesVotes: 6, NoVotes: 0})),
			},
		},
	}
}

func newTestIndexer(t *testing.T, path string, src BlockSource) *ChainIndexer {
	db, err := OpenDB(path)
	require.NoError(t, err)
	c, err := newChainIndexer(cmtlog.NewNopLogger(), db, src)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSyncMirrorsEvents(t *testing.T) {
	src := chainHistory()
	c := newTestIndexer(t, filepath.Join(t.TempDir(), "indexer.db"), src)
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int64(5), c.Height)

	r, err := c.getResolution(0)
	require.NoError(t, err)
	assert.Equal(t, "Budget", r.Title)
	assert.Equal(t, uint64(types.StatusResolved), r.Status)
	assert.True(t, r.Passed)
	assert.Equal(t, uint64(6), r.FinalYes)
	assert.Equal(t, "req-1", r.RequestId)
	assert.Equal(t, uint64(3), r.CloseHeight)

	votes, total, err := c.getVotes(nil, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	for _, v := range votes {
		assert.NotEqual(t, "MALLORY", v.Voter)
	}

	stats, err := c.getStats()
	require.NoError(t, err)
	assert.Equal(t, &Stats{
		Height:        4,
		ActiveMembers: 3,
		TotalWeight:   9,
		Resolutions:   1,
		Resolved:      1,
		Passed:        1,
		Votes:         2,
	}, stats)
}

func TestIndexerResumesAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.db")
	src := chainHistory()
	src.latest = 2
	c := newTestIndexer(t, path, src)
	require.NoError(t, c.Sync(context.Background()))
	require.NoError(t, c.Close())

	src.latest = 4
	c = newTestIndexer(t, path, src)
	assert.Equal(t, int64(3), c.Height)
	require.NoError(t, c.Sync(context.Background()))

	_, total, err := c.getVotes(nil, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	dat, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(dat))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	src := chainHistory()
	src.latest = 3
	c := newTestIndexer(t, filepath.Join(t.TempDir(), "indexer.db"), src)
	require.NoError(t, c.Sync(context.Background()))
	h := NewService(":0", c).Handler()

	w := post(t, h, "/getMembers", GetMembersReq{ActiveOnly: true})
	require.Equal(t, http.StatusOK, w.Code)
	var members GetMembersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	assert.Equal(t, uint64(3), members.Total)
	assert.Equal(t, "ALICE", members.Members[0].Address)

	w = post(t, h, "/getMembers", GetMembersReq{Address: "NOBODY"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := uint64(0)
	w = post(t, h, "/getResolutions", GetResolutionsReq{Resolution: &id})
	require.Equal(t, http.StatusOK, w.Code)
	var rs GetResolutionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rs))
	require.Len(t, rs.Resolutions, 1)
	assert.Equal(t, uint64(2), rs.Resolutions[0].Votes)
	assert.Equal(t, uint64(types.StatusDecryptionPending), rs.Resolutions[0].Status)

	w = post(t, h, "/getVotes", GetVotesReq{Voter: "CAROL"})
	require.Equal(t, http.StatusOK, w.Code)
	var votes GetVotesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &votes))
	assert.Equal(t, uint64(1), votes.Total)

	w = post(t, h, "/getStats", struct{}{})
	require.Equal(t, http.StatusOK, w.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, uint64(1), stats.Pending)
	assert.Equal(t, uint64(9), stats.TotalWeight)

	req := httptest.NewRequest(http.MethodPost, "/getVotes", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
