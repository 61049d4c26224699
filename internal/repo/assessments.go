package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/jonboulle/clockwork"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrAssessmentExists   = errors.New("assessment already exists")
)

// AssessmentRecord tracks one asynchronous assessment. Result is set only when
// Status is completed and Error only when it is failed.
type AssessmentRecord struct {
	ID        string                     `json:"assessment_id"`
	UserID    int                        `json:"-"`
	Status    Status                     `json:"status"`
	Error     string                     `json:"error,omitempty"`
	Result    *assessment.RiskAssessment `json:"result,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// AssessmentSummary is a list entry without the result payload.
type AssessmentSummary struct {
	ID        string    `json:"assessment_id"`
	Status    Status    `json:"status"`
	RiskLevel string    `json:"risk_level,omitempty"`
	RiskScore int       `json:"risk_score"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AssessmentStore interface {
	Create(ctx context.Context, id string, userID int) error
	Complete(ctx context.Context, id string, result *assessment.RiskAssessment) error
	Fail(ctx context.Context, id string, reason string) error
	Get(ctx context.Context, id string) (AssessmentRecord, error)
	// List returns the newest assessments of userID first, at most limit.
	List(ctx context.Context, userID, limit int) ([]AssessmentSummary, error)
}

func summarize(rec AssessmentRecord) AssessmentSummary {
	s := AssessmentSummary{
		ID:        rec.ID,
		Status:    rec.Status,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Result != nil {
		s.RiskLevel = string(rec.Result.RiskLevel)
		s.RiskScore = rec.Result.RiskScore
	}
	return s
}

type PostgresAssessmentRepository struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewPostgresAssessmentRepository(db *sql.DB, clock clockwork.Clock) *PostgresAssessmentRepository {
	return &PostgresAssessmentRepository{db: db, clock: clock}
}

func (r *PostgresAssessmentRepository) Create(ctx context.Context, id string, userID int) error {
	now := r.clock.Now().UTC()
	query := "INSERT INTO assessments (id, user_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)"
	_, err := r.db.ExecContext(ctx, query, id, userID, StatusProcessing, now)
	if isUniqueViolation(err) {
		return ErrAssessmentExists
	}
	return err
}

func (r *PostgresAssessmentRepository) Complete(ctx context.Context, id string, result *assessment.RiskAssessment) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	query := "UPDATE assessments SET status=$2, result=$3, updated_at=$4 WHERE id=$1"
	return r.update(ctx, query, id, StatusCompleted, payload, r.clock.Now().UTC())
}

func (r *PostgresAssessmentRepository) Fail(ctx context.Context, id string, reason string) error {
	query := "UPDATE assessments SET status=$2, error=$3, updated_at=$4 WHERE id=$1"
	return r.update(ctx, query, id, StatusFailed, reason, r.clock.Now().UTC())
}

func (r *PostgresAssessmentRepository) update(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAssessmentNotFound
	}
	return nil
}

func (r *PostgresAssessmentRepository) Get(ctx context.Context, id string) (AssessmentRecord, error) {
	var rec AssessmentRecord
	var payload []byte

	query := "SELECT id, user_id, status, error, result, created_at, updated_at FROM assessments WHERE id=$1"
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&rec.ID, &rec.UserID, &rec.Status, &rec.Error, &payload, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AssessmentRecord{}, ErrAssessmentNotFound
		}
		return AssessmentRecord{}, err
	}
	if len(payload) > 0 {
		rec.Result = new(assessment.RiskAssessment)
		if err := json.Unmarshal(payload, rec.Result); err != nil {
			return AssessmentRecord{}, fmt.Errorf("decode result %s: %w", id, err)
		}
	}
	return rec, nil
}

func (r *PostgresAssessmentRepository) List(ctx context.Context, userID, limit int) ([]AssessmentSummary, error) {
	query := `SELECT id, status, error, COALESCE(result->>'risk_level', ''), COALESCE((result->>'risk_score')::int, 0), created_at, updated_at
		FROM assessments WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AssessmentSummary{}
	for rows.Next() {
		var s AssessmentSummary
		if err := rows.Scan(&s.ID, &s.Status, &s.Error, &s.RiskLevel, &s.RiskScore, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
