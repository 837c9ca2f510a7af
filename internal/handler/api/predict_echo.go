package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	models "ChurnScope/internal/domain/models"
	"ChurnScope/internal/service/metrics"
	"ChurnScope/internal/service/ratelimit"
	"ChurnScope/internal/services/churn"
	"ChurnScope/internal/usecase"
	xhttp "ChurnScope/pkg/http"
	xlogger "ChurnScope/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PredictEchoHandler serves the JSON prediction API.
type PredictEchoHandler struct {
	logger  *xlogger.Logger
	svc     *usecase.PredictionService
	limiter *ratelimit.Limiter
}

// NewPredictEchoHandler builds the handler. A nil limiter disables rate limiting.
func NewPredictEchoHandler(logger *xlogger.Logger, svc *usecase.PredictionService, limiter *ratelimit.Limiter) *PredictEchoHandler {
	return &PredictEchoHandler{logger: logger, svc: svc, limiter: limiter}
}

func (h *PredictEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/predict", h.Predict)
	g.GET("/model", h.Model)
	g.GET("/predictions/recent", h.Recent)
}

func (h *PredictEchoHandler) Predict(c echo.Context) error {
	const endpoint = "predict"
	start := time.Now()
	defer func() {
		metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		metrics.RateLimited.WithLabelValues(endpoint).Inc()
		return h.fail(c, endpoint, xhttp.TooManyRequestsError("rate limit exceeded, retry later"))
	}

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, xhttp.CodeBadRequest).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = c.Response().Header().Get(echo.HeaderXRequestID)
	}

	out, err := h.svc.Predict(c.Request().Context(), req.Raw(), usecase.SourceAPI, requestID)
	if err != nil {
		return h.fail(c, endpoint, predictError(err))
	}
	ev := out.Event
	return xhttp.SuccessResponse(c, models.NewPredictionView(ev.ID, ev.ModelVersion, ev.Result))
}

func (h *PredictEchoHandler) Model(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, models.NewModelInfoView(h.svc.Model()))
}

func (h *PredictEchoHandler) Recent(c echo.Context) error {
	const endpoint = "recent"
	req := &models.RecentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, xhttp.CodeBadRequest).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	events, err := h.svc.Recent(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("recent predictions query failed", xlogger.Error(err))
		return h.fail(c, endpoint, xhttp.ServiceUnavailableError("prediction log unavailable").WithError(err))
	}
	rows := make([]models.EventView, 0, len(events))
	for _, e := range events {
		rows = append(rows, models.NewEventView(e))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PredictEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{
		"status":        "ok",
		"model_version": h.svc.Model().Version,
	})
}

func (h *PredictEchoHandler) fail(c echo.Context, endpoint string, appErr *xhttp.AppError) error {
	metrics.APIErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("prediction usecase error", xlogger.String("endpoint", endpoint), xlogger.Error(appErr))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// predictError maps pipeline errors onto the API error envelope.
func predictError(err error) *xhttp.AppError {
	var verr *churn.ValidationError
	if errors.As(err, &verr) {
		return xhttp.InvalidFieldError(
			xhttp.CodeInvalidNumeric,
			verr.Field,
			fmt.Sprintf("%s must be a non-negative number", verr.Field),
		).WithParam("value", verr.Value).WithParam("reason", verr.Reason).WithError(err)
	}
	return xhttp.InternalError("prediction failed").WithError(err)
}
