package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt/internal/domain"
)

// AttemptRepository stores the stub backend's attempts in quiz_attempts.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) CreateAttempt(ctx context.Context, rec domain.AttemptRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, student, start_time) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.QuizID, rec.Student, rec.StartTime)
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) GetAttempt(ctx context.Context, attemptID string) (domain.AttemptRecord, error) {
	var (
		rec       domain.AttemptRecord
		submitted *time.Time
		score     *int
		responses []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, quiz_id, student, start_time, submission_time, score, responses
		 FROM quiz_attempts WHERE id=$1`, attemptID).
		Scan(&rec.ID, &rec.QuizID, &rec.Student, &rec.StartTime, &submitted, &score, &responses)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("get attempt: %w", err)
	}
	rec.SubmissionTime = submitted
	if score != nil {
		rec.Score = *score
	}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &rec.Responses); err != nil {
			return domain.AttemptRecord{}, fmt.Errorf("unmarshal responses: %w", err)
		}
	}
	return rec, nil
}

// CompleteAttempt grades an attempt once. A second call leaves the first grade in place
// and returns the stored record.
func (r *AttemptRepository) CompleteAttempt(ctx context.Context, rec domain.AttemptRecord) (domain.AttemptRecord, error) {
	raw, err := json.Marshal(rec.Responses)
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("marshal responses: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts SET submission_time=$2, score=$3, responses=$4
		 WHERE id=$1 AND submission_time IS NULL`,
		rec.ID, rec.SubmissionTime, rec.Score, raw)
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return rec, nil
	}
	return r.GetAttempt(ctx, rec.ID)
}
