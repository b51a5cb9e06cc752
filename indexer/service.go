package indexer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	"github.com/calehh/council-app/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 1000
)

type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
}

func NewService(ListenAddr string, indexer *ChainIndexer) *Service {
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: ListenAddr,
	}
	s.engine.POST("/getMembers", s.handleGetMembers)
	s.engine.POST("/getResolutions", s.handleGetResolutions)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.POST("/getStats", s.handleGetStats)
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

func (s *Service) Start() error {
	return s.engine.Run(s.listenAddr)
}

type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

func (p Page) bounds() (int, int) {
	size := p.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page := p.Page
	if page < 0 {
		page = 0
	}
	return page, size
}

func abortError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

type GetMembersReq struct {
	Page
	Address    string `json:"address"`
	ActiveOnly bool   `json:"activeOnly"`
}

type GetMembersResponse struct {
	Members []Member `json:"members"`
	Total   uint64   `json:"total"`
}

func (s *Service) handleGetMembers(c *gin.Context) {
	var requestData GetMembersReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	response := GetMembersResponse{Members: make([]Member, 0)}
	if requestData.Address != "" {
		m, err := s.indexer.getMember(requestData.Address)
		if err != nil {
			abortError(c, err)
			return
		}
		response.Members = append(response.Members, *m)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}
	page, size := requestData.bounds()
	members, total, err := s.indexer.getMembers(requestData.ActiveOnly, page, size)
	if err != nil {
		abortError(c, err)
		return
	}
	response.Members = append(response.Members, members...)
	response.Total = total
	c.JSON(http.StatusOK, response)
}

type GetResolutionsReq struct {
	Page
	Resolution *uint64 `json:"resolution"`
	Creator    string  `json:"creator"`
}

type ResolutionInfo struct {
	Resolution
	Votes uint64 `json:"votes"`
}

type GetResolutionsResponse struct {
	Resolutions []ResolutionInfo `json:"resolutions"`
	Total       uint64           `json:"total"`
}

func (s *Service) resolutionInfo(r Resolution) (ResolutionInfo, error) {
	votes, err := s.indexer.countVotes(r.Resolution)
	if err != nil {
		return ResolutionInfo{}, err
	}
	if r.Status != uint64(types.StatusResolved) {
		r.FinalYes, r.FinalNo, r.Passed = 0, 0, false
	}
	return ResolutionInfo{Resolution: r, Votes: votes}, nil
}

func (s *Service) handleGetResolutions(c *gin.Context) {
	var requestData GetResolutionsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	response := GetResolutionsResponse{Resolutions: make([]ResolutionInfo, 0)}
	var rs []Resolution
	if requestData.Resolution != nil {
		r, err := s.indexer.getResolution(*requestData.Resolution)
		if err != nil {
			abortError(c, err)
			return
		}
		rs = append(rs, *r)
		response.Total = 1
	} else {
		page, size := requestData.bounds()
		var err error
		rs, response.Total, err = s.indexer.getResolutions(requestData.Creator, page, size)
		if err != nil {
			abortError(c, err)
			return
		}
	}
	for _, r := range rs {
		info, err := s.resolutionInfo(r)
		if err != nil {
			abortError(c, err)
			return
		}
		response.Resolutions = append(response.Resolutions, info)
	}
	c.JSON(http.StatusOK, response)
}

type GetVotesReq struct {
	Page
	Resolution *uint64 `json:"resolution"`
	Voter      string  `json:"voter"`
}

type GetVotesResponse struct {
	Votes []VoteReceipt `json:"votes"`
	Total uint64        `json:"total"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var requestData GetVotesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, size := requestData.bounds()
	votes, total, err := s.indexer.getVotes(requestData.Resolution, requestData.Voter, page, size)
	if err != nil {
		abortError(c, err)
		return
	}
	response := GetVotesResponse{Votes: make([]VoteReceipt, 0), Total: total}
	response.Votes = append(response.Votes, votes...)
	c.JSON(http.StatusOK, response)
}

func (s *Service) handleGetStats(c *gin.Context) {
	stats, err := s.indexer.getStats()
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
