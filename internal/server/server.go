package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rezonia/wsfe-client/internal/emitter"
	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/store"
)

// Config holds server configuration
type Config struct {
	Address      string
	Environment  model.Environment
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Emitter runs numbered authorizations
type Emitter interface {
	Emit(ctx context.Context, account model.Account, draft model.Draft) (*emitter.Emission, error)
	EmitBatch(ctx context.Context, account model.Account, drafts []model.Draft) *emitter.BatchResult
}

// Authority answers read-only queries against the authority
type Authority interface {
	LastVoucher(ctx context.Context, account model.Account, pointOfSale int, voucherType model.VoucherType) (int64, error)
	GetVoucher(ctx context.Context, account model.Account, pointOfSale int, voucherType model.VoucherType, number int64) (model.VoucherRecord, error)
	ServerStatus(ctx context.Context, env model.Environment) (model.ServerStatus, error)
}

// Server represents the HTTP API server
type Server struct {
	config    *Config
	router    *gin.Engine
	accounts  store.AccountStore
	emitter   Emitter
	authority Authority
	logger    zerolog.Logger
}

// NewServer creates a new API server
func NewServer(config *Config, accounts store.AccountStore, em Emitter, authority Authority, logger zerolog.Logger) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.Environment == "" {
		config.Environment = model.EnvironmentTest
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID(logger))
	if config.Debug {
		router.Use(accessLog())
	}

	s := &Server{
		config:    config,
		router:    router,
		accounts:  accounts,
		emitter:   em,
		authority: authority,
		logger:    logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/health/upstream", s.handleUpstream)

	v1 := s.router.Group("/api/v1")
	{
		accounts := v1.Group("/accounts/:account")
		accounts.POST("/vouchers", s.handleEmit)
		accounts.POST("/batches", s.handleBatch)
		accounts.GET("/last", s.handleLast)
		accounts.GET("/vouchers/:pos/:type/:number", s.handleGetVoucher)

		v1.POST("/proof", s.handleProof)
	}
}

// Run serves until ctx is done, then shuts down letting in-flight requests
// finish within shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.config.Address).Str("environment", string(s.config.Environment)).Msg("starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUpstream(c *gin.Context) {
	status, err := s.authority.ServerStatus(c.Request.Context(), s.config.Environment)
	if err != nil {
		writeError(c, err)
		return
	}

	code := http.StatusOK
	if !status.OK() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, UpstreamResponse{
		Environment: string(s.config.Environment),
		OK:          status.OK(),
		Status:      status,
	})
}

func (s *Server) handleEmit(c *gin.Context) {
	var draft model.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		writeBindError(c, err)
		return
	}

	account, ok := s.account(c)
	if !ok {
		return
	}

	emission, err := s.emitter.Emit(c.Request.Context(), account, draft)
	if err != nil {
		status, resp := errorResponse(err)
		resp.Emission = emission
		abort(c, err, status, resp)
		return
	}
	c.JSON(http.StatusCreated, emission)
}

func (s *Server) handleBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	if len(req.Drafts) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "batch has no drafts"})
		return
	}

	account, ok := s.account(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, s.emitter.EmitBatch(c.Request.Context(), account, req.Drafts))
}

func (s *Server) handleLast(c *gin.Context) {
	pos, voucherType, err := parseTuple(c.Query("pos"), c.Query("type"))
	if err != nil {
		writeError(c, err)
		return
	}

	account, ok := s.account(c)
	if !ok {
		return
	}

	last, err := s.authority.LastVoucher(c.Request.Context(), account, pos, voucherType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, LastVoucherResponse{
		PointOfSale: pos,
		VoucherType: voucherType,
		Last:        last,
		Next:        last + 1,
	})
}

func (s *Server) handleGetVoucher(c *gin.Context) {
	pos, voucherType, err := parseTuple(c.Param("pos"), c.Param("type"))
	if err != nil {
		writeError(c, err)
		return
	}
	number, err := parseNumber(c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}

	account, ok := s.account(c)
	if !ok {
		return
	}

	record, err := s.authority.GetVoucher(c.Request.Context(), account, pos, voucherType, number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleProof(c *gin.Context) {
	var req ProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	artifacts, err := req.build()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, artifacts)
}

func (s *Server) account(c *gin.Context) (model.Account, bool) {
	account, err := s.accounts.GetAccount(c.Request.Context(), c.Param("account"))
	if err != nil {
		writeError(c, err)
		return model.Account{}, false
	}
	return account, true
}
