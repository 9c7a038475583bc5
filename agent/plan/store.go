package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/voyago/voyago/agent/contract"
)

// Config configures the Postgres plan database.
type Config struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
}

// decisionRow is the persisted form of one accepted step result.
type decisionRow struct {
	bun.BaseModel `bun:"table:trip_decisions"`

	ID        int64          `bun:"id,pk,autoincrement"`
	TaskID    string         `bun:"task_id,notnull"`
	Step      string         `bun:"step,notnull"`
	Payload   map[string]any `bun:"payload,type:jsonb"`
	DecidedAt time.Time      `bun:"decided_at,notnull"`
}

// BunStore persists accepted trip decisions in Postgres. It is the explicit
// hand-off target at task end; nothing in the orchestration hot path
// depends on it.
type BunStore struct {
	db      *bun.DB
	timeout time.Duration
}

var _ contractx.PlanStore = (*BunStore)(nil)

func NewBunStore(cfg Config) (*BunStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("plan store dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &BunStore{db: db, timeout: timeout}, nil
}

// Init creates the decisions table when it does not exist yet.
func (s *BunStore) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NewCreateTable().
		Model((*decisionRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create trip_decisions table: %w", err)
	}
	return nil
}

func (s *BunStore) SaveDecision(ctx context.Context, decision contractx.TaskDecision) error {
	if strings.TrimSpace(decision.TaskID) == "" {
		return fmt.Errorf("%w: decision task id is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(decision.Step) == "" {
		return fmt.Errorf("%w: decision step is empty", contractx.ErrValidation)
	}

	row := &decisionRow{
		TaskID:    decision.TaskID,
		Step:      decision.Step,
		Payload:   decision.Payload,
		DecidedAt: decision.DecidedAt.UTC(),
	}
	if row.DecidedAt.IsZero() {
		row.DecidedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert trip decision: %w", err)
	}
	return nil
}

// Decisions returns the persisted decisions for one task, oldest first.
func (s *BunStore) Decisions(ctx context.Context, taskID string) ([]contractx.TaskDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []decisionRow
	if err := s.db.NewSelect().
		Model(&rows).
		Where("task_id = ?", taskID).
		Order("decided_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("select trip decisions: %w", err)
	}

	out := make([]contractx.TaskDecision, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.TaskDecision{
			TaskID:    row.TaskID,
			Step:      row.Step,
			Payload:   row.Payload,
			DecidedAt: row.DecidedAt,
		})
	}
	return out, nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}
