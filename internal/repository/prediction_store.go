package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ChurnScope/internal/domain/models"
	domrepo "ChurnScope/internal/domain/repository"
	pkgch "ChurnScope/pkg/clickhouse"
	applogger "ChurnScope/pkg/logger"

	"github.com/google/uuid"
)

// sqlDB is the part of *sql.DB the store uses.
type sqlDB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PingContext(ctx context.Context) error
}

const predictionColumns = "id, created_at, source, request_id, tenure, monthly_charges, contract, payment_method, label, probability, probability_pct, unknown_fields, model_version"

const predictionPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

// insertChunk bounds rows per INSERT statement.
const insertChunk = 2000

// ClickHouseStore is the prediction audit log in ClickHouse.
type ClickHouseStore struct {
	db    sqlDB
	table string
	l     *applogger.Logger
}

// NewClickHouseStore uses table as "<database>.<table>".
func NewClickHouseStore(ch *pkgch.Client, table string, l *applogger.Logger) *ClickHouseStore {
	return newClickHouseStore(ch.DB(), table, l)
}

func newClickHouseStore(db sqlDB, table string, l *applogger.Logger) *ClickHouseStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseStore{db: db, table: table, l: l}
}

var _ domrepo.PredictionStore = (*ClickHouseStore)(nil)

func (s *ClickHouseStore) Store(ctx context.Context, e *models.PredictionEvent) error {
	return s.StoreBatch(ctx, []*models.PredictionEvent{e})
}

// StoreBatch writes events with multi-row inserts. Events without a valid
// UUID are skipped and logged.
func (s *ClickHouseStore) StoreBatch(ctx context.Context, events []*models.PredictionEvent) error {
	for start := 0; start < len(events); start += insertChunk {
		end := start + insertChunk
		if end > len(events) {
			end = len(events)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*13)
		for _, e := range events[start:end] {
			row, err := insertArgs(e)
			if err != nil {
				s.l.Warn("skipping prediction event", applogger.Error(err))
				continue
			}
			values = append(values, predictionPlaceholders)
			args = append(args, row...)
		}
		if len(values) == 0 {
			continue
		}

		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, predictionColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert predictions failed",
				applogger.String("table", s.table),
				applogger.Int("rows", len(values)),
				applogger.Error(err),
			)
			return fmt.Errorf("insert predictions: %w", err)
		}
	}
	return nil
}

func insertArgs(e *models.PredictionEvent) ([]interface{}, error) {
	if e == nil {
		return nil, fmt.Errorf("nil event")
	}
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return nil, fmt.Errorf("event id %q: %w", e.ID, err)
	}
	unknown := e.Result.UnknownCategories
	if unknown == nil {
		unknown = []string{}
	}
	return []interface{}{
		id,
		e.CreatedAt.UTC(),
		e.Source,
		e.RequestID,
		int32(e.Record.Tenure),
		e.Record.MonthlyCharges,
		e.Record.Contract,
		e.Record.PaymentMethod,
		uint8(e.Result.Label),
		e.Result.Probability,
		e.Result.ProbabilityPct,
		unknown,
		e.ModelVersion,
	}, nil
}

// Recent returns the latest events, newest first.
func (s *ClickHouseStore) Recent(ctx context.Context, limit int) ([]*models.PredictionEvent, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC LIMIT ?", predictionColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent predictions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.PredictionEvent, 0, limit)
	for rows.Next() {
		var (
			e       models.PredictionEvent
			id      uuid.UUID
			created time.Time
			tenure  int32
			label   uint8
			unknown []string
		)
		if err := rows.Scan(
			&id, &created, &e.Source, &e.RequestID,
			&tenure, &e.Record.MonthlyCharges, &e.Record.Contract, &e.Record.PaymentMethod,
			&label, &e.Result.Probability, &e.Result.ProbabilityPct, &unknown, &e.ModelVersion,
		); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		e.ID = id.String()
		e.CreatedAt = created.UTC()
		e.Record.Tenure = int(tenure)
		e.Result.Label = int(label)
		if len(unknown) > 0 {
			e.Result.UnknownCategories = unknown
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the clickhouse client.
func (s *ClickHouseStore) Close() error { return nil }
