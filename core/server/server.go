// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adalundhe/architect/core/classifier"
	"github.com/adalundhe/architect/core/ledger"
	"github.com/adalundhe/architect/core/metrics"
	"github.com/adalundhe/architect/core/pipeline"
	"github.com/adalundhe/architect/core/prompt"
	"github.com/adalundhe/architect/core/request"
)

const shutdownTimeout = 30 * time.Second

type Server struct {
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	ledger   *ledger.Ledger
	logger   *zap.Logger
	engine   *gin.Engine

	readTimeout  time.Duration
	writeTimeout time.Duration
}

type Option func(*Server)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLedger(l *ledger.Ledger) Option {
	return func(s *Server) { s.ledger = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

func New(p *pipeline.Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:     p,
		logger:       zap.NewNop(),
		readTimeout:  30 * time.Second,
		writeTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(s.logger))

	router.GET("/healthz", s.health)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/generate", s.generate)
		v1.POST("/fix", s.fix)
		v1.POST("/document", s.document)
		v1.POST("/classify", s.classify)
		v1.GET("/usage", s.usage)
	}
	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type generateBody struct {
	Text string `json:"text"`
}

type fixBody struct {
	Text         string       `json:"text"`
	PriorCode    string       `json:"prior_code" binding:"required"`
	ErrorContext string       `json:"error_context"`
	Mode         request.Mode `json:"mode"`
}

type documentBody struct {
	Text      string `json:"text"`
	PriorCode string `json:"prior_code" binding:"required"`
}

func (s *Server) generate(c *gin.Context) {
	var body generateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, err.Error())
		return
	}
	respondResult(c, s.pipeline.Run(c.Request.Context(), pipeline.Input{
		Text: body.Text,
		Kind: request.KindBuild,
	}))
}

func (s *Server) fix(c *gin.Context) {
	var body fixBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if body.Mode != "" && !body.Mode.Valid() {
		BadRequest(c, (&request.InvalidModeError{Mode: body.Mode}).Error())
		return
	}
	text := body.Text
	if text == "" {
		text = pipeline.DefaultFixText
	}
	respondResult(c, s.pipeline.Run(c.Request.Context(), pipeline.Input{
		Text:         text,
		PriorCode:    body.PriorCode,
		ErrorContext: body.ErrorContext,
		Kind:         request.KindFix,
		Mode:         body.Mode,
	}))
}

func (s *Server) document(c *gin.Context) {
	var body documentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, err.Error())
		return
	}
	text := body.Text
	if text == "" {
		text = pipeline.DefaultDocumentText
	}
	respondResult(c, s.pipeline.Run(c.Request.Context(), pipeline.Input{
		Text:      text,
		PriorCode: body.PriorCode,
		Kind:      request.KindDocument,
	}))
}

// ClassifyResponse is the dry-run view of a request.
type ClassifyResponse struct {
	Mode        request.Mode           `json:"mode"`
	Normalized  string                 `json:"normalized"`
	Signal      classifier.Signal      `json:"signal"`
	Prompt      prompt.AssembledPrompt `json:"prompt"`
	Fingerprint string                 `json:"fingerprint"`
}

func (s *Server) classify(c *gin.Context) {
	var body generateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, err.Error())
		return
	}
	plan, err := s.pipeline.Plan(pipeline.Input{Text: body.Text})
	if err != nil {
		var empty *request.EmptyInputError
		if errors.As(err, &empty) {
			BadRequest(c, err.Error())
			return
		}
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	c.JSON(http.StatusOK, ClassifyResponse{
		Mode:        plan.Request.Mode(),
		Normalized:  plan.Request.NormalizedText(),
		Signal:      plan.Signal,
		Prompt:      plan.Prompt,
		Fingerprint: string(plan.Fingerprint),
	})
}

func (s *Server) usage(c *gin.Context) {
	if s.ledger == nil {
		RespondError(c, http.StatusNotFound, ErrCodeNotFound, "generation ledger is disabled")
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if v := c.Query("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			BadRequest(c, "since: "+err.Error())
			return
		}
		since = time.Now().Add(-d)
	}
	summary, err := s.ledger.Summary(c.Request.Context(), since)
	if err != nil {
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, ErrCodeInternal, "could not read generation ledger")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "healthy", "service": "architect"}
	if rc := s.pipeline.Cache(); rc != nil {
		body["cache"] = rc.Stats()
	}
	c.JSON(http.StatusOK, body)
}
