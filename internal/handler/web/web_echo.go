package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	models "ChurnScope/internal/domain/models"
	"ChurnScope/internal/services/churn"
	"ChurnScope/internal/usecase"
	xlogger "ChurnScope/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Dashboard defaults shown before the first prediction.
const (
	defaultTenure         = "12"
	defaultMonthlyCharges = "70.00"
	recentOnDashboard     = 10
)

// WebHandler serves the HTML form, the dashboard page and the dashboard
// websocket.
type WebHandler struct {
	logger   *xlogger.Logger
	svc      *usecase.PredictionService
	tmpl     *template.Template
	upgrader websocket.Upgrader

	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration
	readLimit    int64
}

type WebOption func(*WebHandler)

// WithPingInterval sets how often idle dashboard sockets are pinged. The
// connection is dropped when no pong arrives within twice that interval.
func WithPingInterval(d time.Duration) WebOption {
	return func(h *WebHandler) {
		if d > 0 {
			h.pingInterval = d
			h.pongWait = 2 * d
		}
	}
}

// WithCheckOrigin overrides the websocket origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) WebOption {
	return func(h *WebHandler) { h.upgrader.CheckOrigin = fn }
}

func NewWebHandler(logger *xlogger.Logger, svc *usecase.PredictionService, opts ...WebOption) (*WebHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	h := &WebHandler{
		logger: logger.With(xlogger.String("component", "web")),
		svc:    svc,
		tmpl:   tmpl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingInterval: 30 * time.Second,
		pongWait:     60 * time.Second,
		writeWait:    10 * time.Second,
		readLimit:    4096,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *WebHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Index)
	e.POST("/predict", h.Predict)
	e.GET("/dashboard", h.Dashboard)
	e.GET("/ws/dashboard", h.DashboardSocket)
}

type formValues struct {
	Tenure         string
	MonthlyCharges string
	Contract       string
	PaymentMethod  string
}

func (f formValues) raw() map[string]string {
	return map[string]string{
		models.FieldTenure:         f.Tenure,
		models.FieldMonthlyCharges: f.MonthlyCharges,
		models.FieldContract:       f.Contract,
		models.FieldPaymentMethod:  f.PaymentMethod,
	}
}

func defaultForm() formValues {
	return formValues{
		Tenure:         defaultTenure,
		MonthlyCharges: defaultMonthlyCharges,
		Contract:       models.ContractMonthToMonth,
		PaymentMethod:  models.PaymentElectronicCheck,
	}
}

type pageData struct {
	Form           formValues
	Contracts      []string
	PaymentMethods []string
	Result         *models.PredictionView
	Error          string
	Recent         []models.EventView
}

func newPage(f formValues) *pageData {
	return &pageData{Form: f, Contracts: models.Contracts, PaymentMethods: models.PaymentMethods}
}

func (h *WebHandler) Index(c echo.Context) error {
	return h.render(c, http.StatusOK, "index.html", newPage(defaultForm()))
}

// Predict handles the web form. The short field names used by older forms
// (monthlycharges, paymentmethod) are accepted too.
func (h *WebHandler) Predict(c echo.Context) error {
	f := formValues{
		Tenure:         c.FormValue("tenure"),
		MonthlyCharges: firstValue(c, "monthly_charges", "monthlycharges"),
		Contract:       c.FormValue("contract"),
		PaymentMethod:  firstValue(c, "payment_method", "paymentmethod"),
	}
	page := newPage(f)

	out, err := h.svc.Predict(c.Request().Context(), f.raw(), usecase.SourceWeb, c.Response().Header().Get(echo.HeaderXRequestID))
	if err != nil {
		page.Error = errorText(err)
		return h.render(c, statusFor(err), "index.html", page)
	}
	view := models.NewPredictionView(out.Event.ID, out.Event.ModelVersion, out.Event.Result)
	page.Result = &view
	return h.render(c, http.StatusOK, "index.html", page)
}

// Dashboard renders the dashboard. With predict=1 in the query the submitted
// record is scored server side, otherwise the page waits for websocket input.
func (h *WebHandler) Dashboard(c echo.Context) error {
	f := defaultForm()
	if v := c.QueryParam("tenure"); v != "" {
		f.Tenure = v
	}
	if v := c.QueryParam("monthly_charges"); v != "" {
		f.MonthlyCharges = v
	}
	if v := c.QueryParam("contract"); v != "" {
		f.Contract = v
	}
	if v := c.QueryParam("payment_method"); v != "" {
		f.PaymentMethod = v
	}
	page := newPage(f)
	status := http.StatusOK
	ctx := c.Request().Context()

	if c.QueryParam("predict") != "" {
		out, err := h.svc.Predict(ctx, f.raw(), usecase.SourceDashboard, c.Response().Header().Get(echo.HeaderXRequestID))
		if err != nil {
			page.Error = errorText(err)
			status = statusFor(err)
		} else {
			view := models.NewPredictionView(out.Event.ID, out.Event.ModelVersion, out.Event.Result)
			page.Result = &view
		}
	}

	events, err := h.svc.Recent(ctx, recentOnDashboard)
	if err != nil {
		h.logger.Warn("recent predictions unavailable", xlogger.Error(err))
	}
	for _, e := range events {
		page.Recent = append(page.Recent, models.NewEventView(e))
	}
	return h.render(c, status, "dashboard.html", page)
}

func (h *WebHandler) render(c echo.Context, status int, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("render template failed", xlogger.String("template", name), xlogger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func firstValue(c echo.Context, names ...string) string {
	for _, n := range names {
		if v := c.FormValue(n); v != "" {
			return v
		}
	}
	return ""
}

func statusFor(err error) int {
	var verr *churn.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorText is the user facing message for a failed prediction.
func errorText(err error) string {
	var verr *churn.ValidationError
	if errors.As(err, &verr) {
		field := strings.ReplaceAll(verr.Field, "_", " ")
		if verr.Value == "" {
			return fmt.Sprintf("Please enter a value for %s.", field)
		}
		return fmt.Sprintf("%s must be a non-negative number, got %q.", strings.ToUpper(field[:1])+field[1:], verr.Value)
	}
	return "Prediction failed, please try again."
}
