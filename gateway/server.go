package gateway

import (
	"net/http"
	"strings"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gin-gonic/gin"
)

// Server exposes a Gateway to HTTP clients. Every request must be signed by one of the
// allowed client addresses.
type Server struct {
	engine     *gin.Engine
	gateway    Gateway
	clients    map[string]struct{}
	listenAddr string
	logger     cmtlog.Logger
}

func NewServer(listenAddr string, g Gateway, clients []string, logger cmtlog.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Server{
		engine:     r,
		gateway:    g,
		clients:    make(map[string]struct{}, len(clients)),
		listenAddr: listenAddr,
		logger:     logger.With("module", "gateway-server"),
	}
	for _, c := range clients {
		s.clients[strings.ToUpper(c)] = struct{}{}
	}
	s.engine.POST(RequestPath, s.handleRequestDecryption)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	s.logger.Info("gateway server listening", "addr", s.listenAddr)
	return s.engine.Run(s.listenAddr)
}

func (s *Server) handleRequestDecryption(c *gin.Context) {
	var signed SignedRequest
	if err := c.ShouldBindJSON(&signed); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	client, err := signed.Verify()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if _, ok := s.clients[client]; !ok {
		s.logger.Error("reject decryption request", "client", client)
		c.JSON(http.StatusForbidden, gin.H{"error": ErrUnknownClient.Error()})
		return
	}
	req := signed.Request
	if err := s.gateway.RequestDecryption(c.Request.Context(), req); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID.String()})
}
