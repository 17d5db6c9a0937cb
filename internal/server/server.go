// Package server exposes the enrichment engine over HTTP for the admin UI and for
// remote.Source/remote.BatchClient.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gastromap/location-enricher/internal/metrics"
	"github.com/gastromap/location-enricher/internal/version"
	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/enrich/batch"
	"github.com/gastromap/location-enricher/pkg/enrich/remote"
	"github.com/gastromap/location-enricher/pkg/pipeline/redact"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	defaultMaxBatch    = 100
	defaultCallTimeout = 10 * time.Second
	maxPhotoBytes      = 10 << 20
)

// Enricher is the engine surface the server needs. *engine.Engine satisfies it.
type Enricher interface {
	Configured() bool
	EnrichGroup(ctx context.Context, locs []enrich.LocationRecord, opts enrich.Options) ([]*enrich.Result, error)
}

// HTTPDoer fetches photos on behalf of clients.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type Config struct {
	// Token, when set, is required as "Authorization: Bearer <token>" on every route except
	// /healthz and /metrics.
	Token        string
	AllowOrigins []string
	// MaxBatch caps the number of locations accepted by /enrich-batch.
	MaxBatch    int
	CallTimeout time.Duration
	Batch       batch.Options
}

func (c Config) withDefaults() Config {
	if c.MaxBatch <= 0 {
		c.MaxBatch = defaultMaxBatch
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	c.Token = strings.TrimSpace(c.Token)
	return c
}

type Server struct {
	engine  Enricher
	source  enrich.Source
	metrics *metrics.Metrics
	logger  *slog.Logger
	photos  HTTPDoer
	cfg     Config
}

// New wires a server. metrics may be nil.
func New(eng Enricher, src enrich.Source, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  eng,
		source:  src,
		metrics: m,
		logger:  logger,
		photos:  &http.Client{Timeout: 30 * time.Second},
		cfg:     cfg.withDefaults(),
	}
}

// WithPhotoClient replaces the client used to fetch photos.
func (s *Server) WithPhotoClient(h HTTPDoer) *Server {
	if h != nil {
		s.photos = h
	}
	return s
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/")
	api.Use(requireToken(s.cfg.Token))
	{
		api.POST("/enrich-batch", s.handleEnrichBatch)
		api.GET("/places/search", s.handleSearch)
		api.GET("/places/details", s.handleDetails)
		api.GET("/places/photo", s.handlePhoto)
	}
	return r
}

// requireToken checks the bearer token. Image tags cannot send headers, so the photo route
// also accepts ?access_token= or a per-photo signature from remote.SignPhoto.
func requireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if got == "" && c.FullPath() == "/places/photo" {
			if photoSigned(c, token) {
				c.Next()
				return
			}
			got = c.Query("access_token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, remote.ErrorBody{Error: remote.ErrorDetail{
				Kind:    "unauthorized",
				Message: "missing or invalid bearer token",
			}})
			return
		}
		c.Next()
	}
}

func photoSigned(c *gin.Context, token string) bool {
	sig := c.Query("sig")
	if sig == "" {
		return false
	}
	width, _ := strconv.Atoi(c.Query("maxwidth"))
	var expires int64
	if raw := c.Query("expires"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return false
		}
		expires = v
	}
	return remote.VerifyPhoto(token, strings.TrimSpace(c.Query("ref")), width, expires, sig, time.Now())
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		route := c.FullPath()
		if s.metrics != nil {
			s.metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), elapsed)
		}
		if route == "/healthz" || route == "/metrics" {
			return
		}
		s.logger.Info("http request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration", elapsed.Round(time.Millisecond),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"configured": s.engine.Configured(),
		"version":    version.Current,
	})
}

func (s *Server) handleEnrichBatch(c *gin.Context) {
	var req remote.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.Locations) > s.cfg.MaxBatch {
		badRequest(c, fmt.Sprintf("too many locations: %d (max %d)", len(req.Locations), s.cfg.MaxBatch))
		return
	}
	opts := enrich.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	ctx := c.Request.Context()
	results, err := batch.Grouped(ctx, req.Locations, s.engine.EnrichGroup, opts, s.cfg.Batch, nil)
	if s.metrics != nil {
		s.metrics.ObserveBatch("grouped", len(req.Locations))
	}
	if err != nil {
		s.logger.Warn("batch cancelled", "locations", len(req.Locations), "error", err)
	}
	if results == nil {
		results = []*enrich.Result{}
	}
	c.JSON(http.StatusOK, remote.BatchResponse{Results: results})
}

func (s *Server) handleSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		badRequest(c, "query is required")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.CallTimeout)
	defer cancel()

	place, err := s.source.SearchPlace(ctx, query)
	if err != nil {
		s.writeError(c, s.timeoutErr(ctx, "places search", err))
		return
	}
	c.JSON(http.StatusOK, remote.SearchResponse{Place: place})
}

func (s *Server) handleDetails(c *gin.Context) {
	placeID := strings.TrimSpace(c.Query("place_id"))
	if placeID == "" {
		badRequest(c, "place_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.CallTimeout)
	defer cancel()

	details, err := s.source.PlaceDetails(ctx, placeID)
	if err != nil {
		s.writeError(c, s.timeoutErr(ctx, "place details", err))
		return
	}
	c.JSON(http.StatusOK, remote.DetailsResponse{Details: details})
}

// handlePhoto streams the photo so the provider key never reaches the client.
func (s *Server) handlePhoto(c *gin.Context) {
	ref := strings.TrimSpace(c.Query("ref"))
	if ref == "" {
		badRequest(c, "ref is required")
		return
	}
	width, _ := strconv.Atoi(c.Query("maxwidth"))
	if !s.source.Configured() {
		s.writeError(c, &enrich.NotConfiguredError{Service: "google places"})
		return
	}
	upstream := s.source.PhotoURL(ref, width)
	if upstream == "" {
		badRequest(c, "photo not available")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.CallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream, nil)
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp, err := s.photos.Do(req)
	if err != nil {
		s.writeError(c, s.timeoutErr(ctx, "photo fetch", fmt.Errorf("photo fetch: %s", redact.Secrets(err.Error()))))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		c.AbortWithStatusJSON(http.StatusBadGateway, remote.ErrorBody{Error: remote.ErrorDetail{
			Kind:    "provider",
			Message: "photo fetch returned " + resp.Status,
			Status:  resp.Status,
		}})
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, contentType, io.LimitReader(resp.Body, maxPhotoBytes), nil)
}

func (s *Server) timeoutErr(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &enrich.TimeoutError{Op: op, After: s.cfg.CallTimeout}
	}
	return err
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= 500 && !enrich.IsNotConfigured(err) {
		s.logger.Warn("request failed", "route", c.FullPath(), "kind", enrich.ErrorKind(err), "error", err)
	}
	c.AbortWithStatusJSON(status, remote.NewErrorBody(err))
}

func statusFor(err error) int {
	switch {
	case enrich.IsNotConfigured(err):
		return http.StatusServiceUnavailable
	case enrich.IsQuotaExceeded(err):
		return http.StatusTooManyRequests
	case enrich.IsTimeout(err):
		return http.StatusGatewayTimeout
	case enrich.IsProviderError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, remote.ErrorBody{Error: remote.ErrorDetail{
		Kind:    "bad_request",
		Message: msg,
	}})
}
