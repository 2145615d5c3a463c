package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	pipemetrics "FeatPipe/internal/service/metrics"
	"FeatPipe/internal/service/ratelimit"
	"FeatPipe/internal/services/indicators"
	"FeatPipe/internal/usecase"
	"FeatPipe/pkg/cache"
	xhttp "FeatPipe/pkg/http"
	xlogger "FeatPipe/pkg/logger"
	"FeatPipe/pkg/queue"

	"github.com/labstack/echo/v4"
)

// FeaturesHandler exposes the pipeline over HTTP.
type FeaturesHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.FeaturePipeline
	labels   *usecase.LabelGenerator
	fitter   *usecase.NormalizationFitter
	candles  *usecase.CandlesUseCase

	// optional
	jobs    queue.QueueService
	locker  cache.Service
	lockTTL time.Duration
	rl      *ratelimit.Limiter
}

// FeaturesHandlerOption configures optional collaborators.
type FeaturesHandlerOption func(*FeaturesHandler)

// WithJobQueue lets backfill and label runs be queued instead of run inline.
func WithJobQueue(q queue.QueueService) FeaturesHandlerOption {
	return func(h *FeaturesHandler) { h.jobs = q }
}

// WithBackfillLock serializes inline backfills per instrument.
func WithBackfillLock(c cache.Service, ttl time.Duration) FeaturesHandlerOption {
	return func(h *FeaturesHandler) {
		h.locker = c
		h.lockTTL = ttl
	}
}

// WithRateLimit throttles the write endpoints per client IP.
func WithRateLimit(l *ratelimit.Limiter) FeaturesHandlerOption {
	return func(h *FeaturesHandler) { h.rl = l }
}

func NewFeaturesHandler(
	logger *xlogger.Logger,
	pipeline *usecase.FeaturePipeline,
	labels *usecase.LabelGenerator,
	fitter *usecase.NormalizationFitter,
	candles *usecase.CandlesUseCase,
	opts ...FeaturesHandlerOption,
) *FeaturesHandler {
	h := &FeaturesHandler{
		logger:   logger,
		pipeline: pipeline,
		labels:   labels,
		fitter:   fitter,
		candles:  candles,
		lockTTL:  30 * time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *FeaturesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/features", h.Features)
	g.POST("/features/backfill", h.Backfill, h.limited("backfill"))
	g.POST("/labels/run", h.RunLabels, h.limited("labels"))
	g.GET("/labels/classify", h.Classify)
	g.GET("/indicators", h.ListIndicators)
	g.GET("/indicators/:name", h.Indicator)
	g.POST("/normalization/fit", h.FitNormalization, h.limited("fit"))
	g.GET("/candles", h.Candles)
}

func (h *FeaturesHandler) limited(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.rl != nil && !h.rl.Allow(c.RealIP()+":"+endpoint) {
				h.logger.Warn("rate limited",
					xlogger.String("endpoint", endpoint),
					xlogger.String("remote", c.RealIP()))
				secs := int(math.Ceil(h.rl.RetryAfter().Seconds()))
				c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(secs))
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
			}
			return next(c)
		}
	}
}

func observe(endpoint string) func() {
	start := time.Now()
	return func() {
		pipemetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// Features merges the anchor before as_of, optionally persisting it.
func (h *FeaturesHandler) Features(c echo.Context) error {
	defer observe("features")()
	req := &models.FeatureRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf, err := usecase.ParseAsOf(req.AsOf)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	rec, err := h.pipeline.Merge(c.Request().Context(), req.InstID, asOf, req.Persist)
	if err != nil {
		return h.fail(c, "features", err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *FeaturesHandler) Backfill(c echo.Context) error {
	defer observe("backfill")()
	req := &models.BackfillRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf, err := usecase.ParseAsOf(req.AsOf)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	ctx := c.Request().Context()

	if !req.Sync && h.jobs != nil {
		payload := usecase.BackfillPayload{InstID: req.InstID, Count: req.Count, AsOf: req.AsOf}
		if err := h.jobs.PublishMessage(ctx, usecase.JobTypeBackfill, payload); err != nil {
			return h.fail(c, "backfill", err)
		}
		return xhttp.AcceptedResponse(c, map[string]interface{}{"queued": true, "job": usecase.JobTypeBackfill, "inst_id": req.InstID})
	}

	unlock, err := h.lock(ctx, "backfill:"+req.InstID)
	if err != nil {
		return h.fail(c, "backfill", err)
	}
	defer unlock()

	res, err := h.pipeline.Backfill(ctx, req.InstID, asOf, req.Count)
	if err != nil {
		return h.fail(c, "backfill", err)
	}
	return xhttp.SuccessResponse(c, res)
}

var errLocked = errors.New("operation already running")

func (h *FeaturesHandler) lock(ctx context.Context, key string) (func(), error) {
	if h.locker == nil {
		return func() {}, nil
	}
	ok, err := h.locker.TryLock(ctx, key, h.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errLocked, key)
	}
	return func() {
		if err := h.locker.Unlock(context.Background(), key); err != nil {
			h.logger.Warn("unlock failed", xlogger.String("key", key), xlogger.Error(err))
		}
	}, nil
}

func (h *FeaturesHandler) RunLabels(c echo.Context) error {
	defer observe("labels_run")()
	req := &models.LabelRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if req.Async && h.jobs != nil {
		payload := usecase.LabelPayload{InstID: req.InstID, Mode: req.Mode, Limit: req.Limit}
		if err := h.jobs.PublishMessage(ctx, usecase.JobTypeLabels, payload); err != nil {
			return h.fail(c, "labels_run", err)
		}
		return xhttp.AcceptedResponse(c, map[string]interface{}{"queued": true, "job": usecase.JobTypeLabels, "inst_id": req.InstID})
	}

	res, err := h.labels.Run(ctx, req.InstID, models.LabelMode(req.Mode), req.Limit)
	if err != nil {
		return h.fail(c, "labels_run", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FeaturesHandler) Classify(c echo.Context) error {
	req := &models.ClassifyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	label, matched := h.labels.Classify(req.Pct)
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"pct":     req.Pct,
		"label":   label,
		"matched": matched,
	})
}

func (h *FeaturesHandler) ListIndicators(c echo.Context) error {
	return xhttp.SuccessResponse(c, indicators.Names())
}

func (h *FeaturesHandler) Indicator(c echo.Context) error {
	defer observe("indicator")()
	req := &models.IndicatorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	before, err := usecase.ParseAsOf(req.AsOf)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	res, err := h.candles.ComputeIndicator(c.Request().Context(), req.Name, usecase.GetWindowParams{
		InstID: req.InstID,
		Bar:    domrepo.NormalizeBar(req.Bar),
		Length: req.Length,
		Before: before,
	})
	if err != nil {
		return h.fail(c, "indicator", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FeaturesHandler) FitNormalization(c echo.Context) error {
	defer observe("normalization_fit")()
	req := &models.FitNormalizationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	p, err := h.fitter.Fit(c.Request().Context(), req.InstID, domrepo.NormalizeBar(req.Bar), req.Column, req.Length)
	if err != nil {
		return h.fail(c, "normalization_fit", err)
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *FeaturesHandler) Candles(c echo.Context) error {
	defer observe("candles")()
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	before, err := usecase.ParseAsOf(req.AsOf)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	res, err := h.candles.GetWindow(c.Request().Context(), usecase.GetWindowParams{
		InstID: req.InstID,
		Bar:    domrepo.NormalizeBar(req.Bar),
		Length: req.Length,
		Before: before,
	})
	if err != nil {
		return h.fail(c, "candles", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

// fail maps domain errors onto API errors and counts them.
func (h *FeaturesHandler) fail(c echo.Context, endpoint string, err error) error {
	pipemetrics.APIErrors.WithLabelValues(endpoint).Inc()
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	} else {
		h.logger.Info(endpoint+" rejected",
			xlogger.Int("status", appErr.Status),
			xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var aerr *usecase.AnchorError
	switch {
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, indicators.ErrUnknownIndicator):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, errLocked):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.As(err, &aerr):
		return xhttp.UnprocessableError(err.Error()).
			WithParam("anchor", aerr.Anchor).
			WithError(err)
	case errors.Is(err, usecase.ErrInsufficientData),
		errors.Is(err, indicators.ErrInsufficientData),
		errors.Is(err, usecase.ErrMissingNormalization),
		errors.Is(err, usecase.ErrFutureUnavailable):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
