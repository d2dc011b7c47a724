package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/transfer-tracker/config"
	"github.com/vultisig/transfer-tracker/internal/logging"
	"github.com/vultisig/transfer-tracker/internal/metrics"
	"github.com/vultisig/transfer-tracker/tracker"
)

// StatusSource is the read side of the lifecycle store.
type StatusSource interface {
	Snapshot() tracker.Snapshot
}

// Tracking starts and stops polling. Optional.
type Tracking interface {
	Start(ctx context.Context, packetHash string) error
	Stop()
	Running() bool
}

type TrackRequest struct {
	PacketHash string `json:"packet_hash" validate:"required"`
}

type TrackResponse struct {
	PacketHash string `json:"packet_hash"`
	Running    bool   `json:"running"`
}

type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

// Server is a read-only HTTP view of the lifecycle store. When a Tracking is
// supplied it also exposes start/stop of the poll loop to bearer token holders.
type Server struct {
	cfg      config.ApiConfig
	status   StatusSource
	tracking Tracking
	auth     *AuthService
	logger   *logrus.Logger
	metrics  bool

	// ctx outlives requests; polls started over HTTP are bound to it
	ctx context.Context
}

// NewServer returns a new server.
func NewServer(
	cfg config.ApiConfig,
	logger *logrus.Logger,
	status StatusSource,
	tracking Tracking, // Optional: pass nil for a read-only server
	withMetrics bool,
) *Server {
	s := &Server{
		cfg:      cfg,
		status:   status,
		tracking: tracking,
		logger:   logger.WithField("pkg", "api.server").Logger,
		metrics:  withMetrics,
		ctx:      context.Background(),
	}
	if cfg.JWTSecret != "" {
		s.auth = NewAuthService(cfg.JWTSecret)
	}
	return s
}

func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validator: validator.New()}

	if s.metrics {
		e.Use(metrics.APIMiddleware())
	}
	e.Use(logging.LoggerMiddleware(s.logger))
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealthz)
	e.GET("/transfer", s.handleGetTransfer)
	e.GET("/transfer/:packetHash", s.handleGetTransferByHash)

	trk := e.Group("/track", s.authMiddleware)
	trk.POST("", s.handleStartTracking)
	trk.DELETE("", s.handleStopTracking)
	return e
}

func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx
	e := s.Handler()

	eg := &errgroup.Group{}
	eg.Go(func() error {
		err := e.Start(fmt.Sprintf(":%d", s.cfg.Port))
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	})
	eg.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down server...")

		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := e.Shutdown(c)
		if err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})

	return eg.Wait()
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.String(http.StatusOK, "transfer tracker is running")
}

func (s *Server) handleGetTransfer(c echo.Context) error {
	snap := s.status.Snapshot()
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, snap.View()))
}

func (s *Server) handleGetTransferByHash(c echo.Context) error {
	snap := s.status.Snapshot()
	if snap.PacketHash == "" || snap.PacketHash != c.Param("packetHash") {
		return c.JSON(http.StatusNotFound, NewErrorResponseWithMessage(MsgNotTracked))
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, snap.View()))
}

func (s *Server) handleStartTracking(c echo.Context) error {
	if s.tracking == nil {
		return c.JSON(http.StatusForbidden, NewErrorResponseWithMessage(MsgTrackingDisabled))
	}

	var req TrackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(MsgInvalidRequest, err.Error()))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(MsgInvalidRequest, err.Error()))
	}

	err := s.tracking.Start(s.ctx, req.PacketHash)
	if err != nil {
		s.logger.WithError(err).Error("fail to start tracking")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(MsgInternalError))
	}
	return c.JSON(http.StatusAccepted, NewSuccessResponse(http.StatusAccepted, TrackResponse{
		PacketHash: req.PacketHash,
		Running:    s.tracking.Running(),
	}))
}

func (s *Server) handleStopTracking(c echo.Context) error {
	if s.tracking == nil {
		return c.JSON(http.StatusForbidden, NewErrorResponseWithMessage(MsgTrackingDisabled))
	}
	s.tracking.Stop()
	return c.NoContent(http.StatusNoContent)
}
