package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/remotehand/signaling-server-go/internal/model"
)

type RecordingRepository interface {
	FindByID(ctx context.Context, id string) (*model.Recording, error)
	ListBySession(ctx context.Context, sessionPK string) ([]model.Recording, error)
	Delete(ctx context.Context, id string) error
}

type recordingRepo struct {
	db sessionDB
}

func NewRecordingRepository(db *sqlx.DB) RecordingRepository {
	return &recordingRepo{db: db}
}

func (r *recordingRepo) FindByID(ctx context.Context, id string) (*model.Recording, error) {
	var recording model.Recording
	err := r.db.GetContext(ctx, &recording, `
		SELECT * FROM recordings WHERE id = $1
	`, id)
	return HandleNotFound(&recording, err)
}

func (r *recordingRepo) ListBySession(ctx context.Context, sessionPK string) ([]model.Recording, error) {
	var recordings []model.Recording
	err := r.db.SelectContext(ctx, &recordings, `
		SELECT * FROM recordings
		WHERE session_id = $1
		ORDER BY created_at DESC
	`, sessionPK)
	if err != nil {
		return nil, err
	}
	return recordings, nil
}

func (r *recordingRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM recordings WHERE id = $1
	`, id)
	return err
}
