package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/remotehand/signaling-server-go/internal/model"
)

type SessionLogRepository interface {
	Insert(ctx context.Context, params model.CreateSessionLogParams) error
	ListBySession(ctx context.Context, sessionPK string) ([]model.SessionLog, error)
	WithTx(tx *sqlx.Tx) SessionLogRepository
}

type sessionLogRepo struct {
	db sessionDB
}

func NewSessionLogRepository(db *sqlx.DB) SessionLogRepository {
	return &sessionLogRepo{db: db}
}

func (r *sessionLogRepo) WithTx(tx *sqlx.Tx) SessionLogRepository {
	return &sessionLogRepo{db: tx}
}

func (r *sessionLogRepo) Insert(ctx context.Context, params model.CreateSessionLogParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_logs (id, session_id, event, detail)
		VALUES ($1, $2, $3, $4)
	`, params.ID, params.SessionID, params.Event, params.Detail)
	return err
}

func (r *sessionLogRepo) ListBySession(ctx context.Context, sessionPK string) ([]model.SessionLog, error) {
	var logs []model.SessionLog
	err := r.db.SelectContext(ctx, &logs, `
		SELECT * FROM session_logs
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionPK)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
