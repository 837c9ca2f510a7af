package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	models "ChurnScope/internal/domain/models"
	"ChurnScope/internal/services/churn"
	"ChurnScope/internal/usecase"
	xhttp "ChurnScope/pkg/http"
	xlogger "ChurnScope/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// dashboardRequest is one record sent by the dashboard widgets. Numbers may
// arrive as JSON numbers or strings; the feature schema validates both.
type dashboardRequest struct {
	ID             string            `json:"id,omitempty"`
	Tenure         models.FlexString `json:"tenure"`
	MonthlyCharges models.FlexString `json:"monthly_charges"`
	Contract       string            `json:"contract"`
	PaymentMethod  string            `json:"payment_method"`
}

func (r *dashboardRequest) raw() map[string]string {
	return map[string]string{
		models.FieldTenure:         string(r.Tenure),
		models.FieldMonthlyCharges: string(r.MonthlyCharges),
		models.FieldContract:       r.Contract,
		models.FieldPaymentMethod:  r.PaymentMethod,
	}
}

// dashboardReply answers exactly one dashboardRequest.
type dashboardReply struct {
	ID     string                 `json:"id,omitempty"`
	Result *models.PredictionView `json:"result,omitempty"`
	Error  *xhttp.AppError        `json:"error,omitempty"`
}

// DashboardSocket upgrades to a websocket and scores one record per message.
func (h *WebHandler) DashboardSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		h.logger.Debug("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	s := &dashboardSession{
		h:         h,
		conn:      conn,
		requestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
	s.run(c.Request().Context())
	return nil
}

type dashboardSession struct {
	h         *WebHandler
	conn      *websocket.Conn
	requestID string
	writeMu   sync.Mutex
}

func (s *dashboardSession) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.conn.Close()

	s.conn.SetReadLimit(s.h.readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.h.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.h.pongWait))
	})

	// ping loop
	go func() {
		ticker := time.NewTicker(s.h.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.writeMu.Lock()
				err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.h.writeWait))
				s.writeMu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.h.logger.Debug("dashboard websocket closed", xlogger.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.h.pongWait))

		if err := s.write(s.handle(ctx, b)); err != nil {
			s.h.logger.Debug("dashboard websocket write failed", xlogger.Error(err))
			return
		}
	}
}

func (s *dashboardSession) handle(ctx context.Context, b []byte) *dashboardReply {
	var req dashboardRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return &dashboardReply{ID: frameID(b), Error: xhttp.BadRequestError(fmt.Sprintf("invalid record: %v", err))}
	}
	requestID := req.ID
	if requestID == "" {
		requestID = s.requestID
	}
	out, err := s.h.svc.Predict(ctx, req.raw(), usecase.SourceDashboard, requestID)
	if err != nil {
		var verr *churn.ValidationError
		if errors.As(err, &verr) {
			return &dashboardReply{ID: req.ID, Error: xhttp.InvalidFieldError(xhttp.CodeInvalidNumeric, verr.Field, errorText(err))}
		}
		s.h.logger.Error("dashboard prediction failed", xlogger.Error(err))
		return &dashboardReply{ID: req.ID, Error: xhttp.InternalError("prediction failed")}
	}
	view := models.NewPredictionView(out.Event.ID, out.Event.ModelVersion, out.Event.Result)
	return &dashboardReply{ID: req.ID, Result: &view}
}

// frameID recovers the id of a frame whose record did not decode.
func frameID(b []byte) string {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return ""
	}
	return head.ID
}

func (s *dashboardSession) write(r *dashboardReply) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.h.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(r)
}
