package app

import (
	"context"
	"encoding/json"
	"strings"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/council-app/engine"
	"github.com/calehh/council-app/state"
)

func (app *CouncilApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = 404
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// decodeIndex reads a big-endian integer of up to 8 bytes.
func decodeIndex(dat []byte) (idx uint64, ok bool) {
	if len(dat) == 0 || len(dat) > 8 {
		return 0, false
	}
	for _, v := range dat {
		idx <<= 8
		idx |= uint64(v)
	}
	return idx, true
}

func jsonResponse(v any, height int64) *abcitypes.ResponseQuery {
	res := &abcitypes.ResponseQuery{Height: height}
	dat, err := json.Marshal(v)
	if err != nil {
		res.Code = CodeInternal
		res.Log = err.Error()
		return res
	}
	res.Value = dat
	return res
}

func errResponse(err error) *abcitypes.ResponseQuery {
	return &abcitypes.ResponseQuery{Code: ErrorCode(err), Log: err.Error()}
}

// MemberQuerier answers with the view of the address in Data, or every registered member
// when Data is empty.
type MemberQuerier struct {
	store  *state.Store
	logger cmtlog.Logger
}

func NewMemberQuerier(store *state.Store, logger cmtlog.Logger) (q *MemberQuerier) {
	q = &MemberQuerier{
		store:  store,
		logger: logger,
	}
	return
}

func (q *MemberQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	height := q.store.Version()
	if len(req.Data) == 0 {
		members, err := q.store.Members(0, 0)
		if err != nil {
			return errResponse(err), nil
		}
		return jsonResponse(members, height), nil
	}
	m, err := q.store.Member(string(req.Data))
	if err != nil {
		return errResponse(err), nil
	}
	if m == nil {
		m = &state.Member{Address: string(req.Data)}
	}
	return jsonResponse(m, height), nil
}

// ResolutionQuerier answers with one resolution when Data holds its id, or the list otherwise.
// Tallies are never part of the answer.
type ResolutionQuerier struct {
	engine *engine.Engine
	logger cmtlog.Logger
}

func NewResolutionQuerier(eng *engine.Engine, logger cmtlog.Logger) (q *ResolutionQuerier) {
	q = &ResolutionQuerier{
		engine: eng,
		logger: logger,
	}
	return
}

func (q *ResolutionQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	height := q.engine.Store().Version()
	if id, ok := decodeIndex(req.Data); ok {
		view, err := q.engine.GetResolution(id)
		if err != nil {
			return errResponse(err), nil
		}
		return jsonResponse(view, height), nil
	}
	views, err := q.engine.ListResolutions(0, 0)
	if err != nil {
		return errResponse(err), nil
	}
	return jsonResponse(views, height), nil
}

type TotalWeightQuerier struct {
	engine *engine.Engine
	logger cmtlog.Logger
}

func NewTotalWeightQuerier(eng *engine.Engine, logger cmtlog.Logger) *TotalWeightQuerier {
	return &TotalWeightQuerier{engine: eng, logger: logger}
}

func (q *TotalWeightQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	total, err := q.engine.GetTotalWeight()
	if err != nil {
		return errResponse(err), nil
	}
	return jsonResponse(total, q.engine.Store().Version()), nil
}

type ResolutionCountQuerier struct {
	engine *engine.Engine
	logger cmtlog.Logger
}

func NewResolutionCountQuerier(eng *engine.Engine, logger cmtlog.Logger) *ResolutionCountQuerier {
	return &ResolutionCountQuerier{engine: eng, logger: logger}
}

func (q *ResolutionCountQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	n, err := q.engine.GetResolutionCount()
	if err != nil {
		return errResponse(err), nil
	}
	return jsonResponse(n, q.engine.Store().Version()), nil
}

// NonceQuerier answers with the next nonce of the address in Data.
type NonceQuerier struct {
	store  *state.Store
	logger cmtlog.Logger
}

func NewNonceQuerier(store *state.Store, logger cmtlog.Logger) *NonceQuerier {
	return &NonceQuerier{store: store, logger: logger}
}

func (q *NonceQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	if len(req.Data) == 0 {
		return &abcitypes.ResponseQuery{Code: CodeInvalidTx, Log: "address required"}, nil
	}
	n, err := q.store.Nonce(string(req.Data))
	if err != nil {
		return errResponse(err), nil
	}
	return jsonResponse(n, q.store.Version()), nil
}

type ParamsQuerier struct {
	store  *state.Store
	logger cmtlog.Logger
}

func NewParamsQuerier(store *state.Store, logger cmtlog.Logger) *ParamsQuerier {
	return &ParamsQuerier{store: store, logger: logger}
}

func (q *ParamsQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	p, err := q.store.Params()
	if err != nil {
		return errResponse(err), nil
	}
	return jsonResponse(p, q.store.Version()), nil
}

// DecryptionQuerier answers with the outstanding decryption of the resolution id in Data.
// Gateways check requests against it before decrypting.
type DecryptionQuerier struct {
	engine *engine.Engine
	logger cmtlog.Logger
}

func NewDecryptionQuerier(eng *engine.Engine, logger cmtlog.Logger) *DecryptionQuerier {
	return &DecryptionQuerier{engine: eng, logger: logger}
}

func (q *DecryptionQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	id, ok := decodeIndex(req.Data)
	if !ok {
		return &abcitypes.ResponseQuery{Code: CodeInvalidTx, Log: "resolution id required"}, nil
	}
	t, err := q.engine.DecryptionTarget(ctx, id)
	if err != nil {
		return errResponse(err), nil
	}
	return jsonResponse(t, q.engine.Store().Version()), nil
}
