package indexer

import (
	"context"
	"errors"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	"github.com/calehh/council-app/types"
)

// BlockSource is the part of the CometBFT RPC client the indexer reads from.
type BlockSource interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error)
}

// ChainIndexer mirrors council events into sqlite so they can be served without touching
// consensus state.
type ChainIndexer struct {
	logger cmtlog.Logger
	Height int64
	db     *gorm.DB
	src    BlockSource
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	return newChainIndexer(logger, db, cli)
}

func OpenDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Height{}, &Member{}, &Resolution{}, &VoteReceipt{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newChainIndexer(logger cmtlog.Logger, db *gorm.DB, src BlockSource) (*ChainIndexer, error) {
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return &ChainIndexer{
		logger: logger.With("module", "indexer"),
		Height: int64(h.Height + 1),
		db:     db,
		src:    src,
	}, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

type eventHandler func(db *gorm.DB, event abci.Event, height int64) error

var eventHandlers = map[string]eventHandler{
	types.EventMemberUpdatedType:       handleEventMemberUpdated,
	types.EventResolutionCreatedType:   handleEventResolutionCreated,
	types.EventVoteCastType:            handleEventVoteCast,
	types.EventResolutionClosedType:    handleEventResolutionClosed,
	types.EventResolutionFinalizedType: handleEventResolutionFinalized,
}

func handleEvent(db *gorm.DB, event abci.Event, height int64) error {
	if h, ok := eventHandlers[event.Type]; ok {
		return h(db, event, height)
	}
	return nil
}

var errDecodeEvent = errors.New("decode event fail")

func handleEventMemberUpdated(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventMemberUpdated(event)
	if ev == nil {
		return errDecodeEvent
	}
	return db.Save(&Member{
		Address: ev.Address,
		Name:    ev.Name,
		Role:    ev.Role,
		Weight:  ev.Weight,
		Active:  ev.Active,
		Height:  uint64(height),
	}).Error
}

func handleEventResolutionCreated(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventResolutionCreated(event)
	if ev == nil {
		return errDecodeEvent
	}
	return db.Create(&Resolution{
		Resolution:     ev.Resolution,
		Title:          ev.Title,
		Description:    ev.Description,
		Creator:        ev.Creator,
		RequiredQuorum: ev.RequiredQuorum,
		StartTime:      ev.StartTime.Unix(),
		EndTime:        ev.EndTime.Unix(),
		Status:         uint64(types.StatusOpen),
		CreateHeight:   uint64(height),
	}).Error
}

func handleEventVoteCast(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventVoteCast(event)
	if ev == nil {
		return errDecodeEvent
	}
	return db.Create(&VoteReceipt{
		Resolution: ev.Resolution,
		Voter:      ev.Voter,
		Height:     uint64(height),
	}).Error
}

func handleEventResolutionClosed(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventResolutionClosed(event)
	if ev == nil {
		return errDecodeEvent
	}
	return db.Model(&Resolution{}).Where("resolution = ?", ev.Resolution).Updates(map[string]any{
		"status":       uint64(ev.Status),
		"request_id":   ev.RequestId,
		"deadline":     ev.Deadline.Unix(),
		"close_height": uint64(height),
	}).Error
}

func handleEventResolutionFinalized(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventResolutionFinalized(event)
	if ev == nil {
		return errDecodeEvent
	}
	return db.Model(&Resolution{}).Where("resolution = ?", ev.Resolution).Updates(map[string]any{
		"status":         uint64(types.StatusResolved),
		"passed":         ev.Passed,
		"final_yes":      ev.YesVotes,
		"final_no":       ev.NoVotes,
		"resolve_height": uint64(height),
	}).Error
}

// processBlock indexes the events of successful txs at height and records the height as done.
func (c *ChainIndexer) processBlock(ctx context.Context, height int64, results []*abci.ExecTxResult) error {
	tx := c.db.Begin()
	for _, res := range results {
		if res == nil || res.Code != 0 {
			continue
		}
		for _, event := range res.Events {
			if err := handleEvent(tx, event, height); err != nil {
				tx.Rollback()
				c.logger.Error("index event fail", "height", height, "type", event.Type, "err", err)
				return err
			}
		}
	}
	if err := tx.Save(&Height{Id: 1, Height: uint64(height)}).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// Sync indexes every block up to the latest one the node reports.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	status, err := c.src.Status(ctx)
	if err != nil {
		return err
	}
	for status.SyncInfo.LatestBlockHeight >= c.Height {
		if err := ctx.Err(); err != nil {
			return err
		}
		height := c.Height
		res, err := c.src.BlockResults(ctx, &height)
		if err != nil {
			return err
		}
		if err = c.processBlock(ctx, height, res.TxsResults); err != nil {
			return err
		}
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

func (c *ChainIndexer) getMember(address string) (*Member, error) {
	var m Member
	err := c.db.Where("address = ?", address).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *ChainIndexer) getMembers(activeOnly bool, page int, pageSize int) ([]Member, uint64, error) {
	var members []Member
	q := c.db.Model(&Member{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("weight desc").Offset(page * pageSize).Limit(pageSize).Find(&members).Error
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (c *ChainIndexer) getResolution(id uint64) (*Resolution, error) {
	var r Resolution
	err := c.db.Where("resolution = ?", id).First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *ChainIndexer) getResolutions(creator string, page int, pageSize int) ([]Resolution, uint64, error) {
	var rs []Resolution
	q := c.db.Model(&Resolution{})
	if creator != "" {
		q = q.Where("creator = ?", creator)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("resolution desc").Offset(page * pageSize).Limit(pageSize).Find(&rs).Error
	if err != nil {
		return nil, 0, err
	}
	return rs, total, nil
}

func (c *ChainIndexer) getVotes(resolution *uint64, voter string, page int, pageSize int) ([]VoteReceipt, uint64, error) {
	var votes []VoteReceipt
	q := c.db.Model(&VoteReceipt{})
	if resolution != nil {
		q = q.Where("resolution = ?", *resolution)
	}
	if voter != "" {
		q = q.Where("voter = ?", voter)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) countVotes(resolution uint64) (n uint64, err error) {
	err = c.db.Model(&VoteReceipt{}).Where("resolution = ?", resolution).Count(&n).Error
	return
}

type Stats struct {
	Height        uint64 `json:"height"`
	ActiveMembers uint64 `json:"activeMembers"`
	TotalWeight   uint64 `json:"totalWeight"`
	Resolutions   uint64 `json:"resolutions"`
	Open          uint64 `json:"open"`
	Pending       uint64 `json:"pending"`
	Resolved      uint64 `json:"resolved"`
	Passed        uint64 `json:"passed"`
	Votes         uint64 `json:"votes"`
}

func (c *ChainIndexer) getStats() (*Stats, error) {
	var s Stats
	h := Height{Id: 1}
	if err := c.db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	s.Height = h.Height

	active := c.db.Model(&Member{}).Where("active = ?", true)
	if err := active.Count(&s.ActiveMembers).Error; err != nil {
		return nil, err
	}
	if s.ActiveMembers > 0 {
		if err := active.Select("sum(weight)").Row().Scan(&s.TotalWeight); err != nil {
			return nil, err
		}
	}
	counts := []struct {
		dst   *uint64
		where string
		args  []any
	}{
		{&s.Resolutions, "1 = 1", nil},
		{&s.Open, "status = ?", []any{uint64(types.StatusOpen)}},
		{&s.Pending, "status IN (?)", []any{[]uint64{uint64(types.StatusClosed), uint64(types.StatusDecryptionPending)}}},
		{&s.Resolved, "status = ?", []any{uint64(types.StatusResolved)}},
		{&s.Passed, "status = ? AND passed = ?", []any{uint64(types.StatusResolved), true}},
	}
	for _, q := range counts {
		if err := c.db.Model(&Resolution{}).Where(q.where, q.args...).Count(q.dst).Error; err != nil {
			return nil, err
		}
	}
	if err := c.db.Model(&VoteReceipt{}).Count(&s.Votes).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
