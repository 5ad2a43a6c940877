package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/remotehand/signaling-server-go/internal/model"
)

type StatusCount struct {
	Status model.SessionStatus `db:"status"`
	Count  int64               `db:"count"`
}

type SessionRepository interface {
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error)
	FindByPK(ctx context.Context, id string) (*model.Session, error)
	// UpdateStatus applies the monotonic transition guard in SQL: terminal
	// rows are never moved. Returns the number of rows changed.
	UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) (int64, error)
	SetClientInfo(ctx context.Context, sessionID, clientName, clientIP string) error
	SetHostOffer(ctx context.Context, sessionID, offer string) error
	SetClientAnswer(ctx context.Context, sessionID, answer string) error
	SetClientOffer(ctx context.Context, sessionID, offer string, iceCandidates []byte) error
	SetHostAnswer(ctx context.Context, sessionID, answer string, iceCandidates []byte) error
	// AppendICECandidates appends the given JSON array to one side's
	// candidate list in a single UPDATE, so concurrent submissions from the
	// same side never lose a candidate to a read-modify-write race.
	AppendICECandidates(ctx context.Context, sessionID string, side model.SignalingRole, candidates []byte) error
	// MarkNotificationSent flips the flag only if it is still unset and
	// reports whether this call won, giving at-most-once notification
	// dispatch under concurrent triggers.
	MarkNotificationSent(ctx context.Context, sessionID string, kind model.NotificationKind) (bool, error)
	SweepExpired(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (
			id, session_id, password_hash, host_user_id, auto_record,
			calendar_event_id, calendar_source, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.ID, params.SessionID, params.PasswordHash, params.HostUserID,
		params.AutoRecord, params.CalendarEventID, params.CalendarSource, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE session_id = $1
	`, sessionID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByPK(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = $2,
			connected_at = CASE
				WHEN $2 = 'connected' AND connected_at IS NULL THEN now()
				ELSE connected_at END,
			ended_at = CASE
				WHEN $2 IN ('disconnected', 'expired') AND ended_at IS NULL THEN now()
				ELSE ended_at END,
			updated_at = now()
		WHERE session_id = $1
		AND status NOT IN ('disconnected', 'expired')
	`, sessionID, status)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) SetClientInfo(ctx context.Context, sessionID, clientName, clientIP string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			client_name = $2,
			client_ip = $3,
			updated_at = now()
		WHERE session_id = $1
	`, sessionID, clientName, clientIP)
	return err
}

func (r *sessionRepo) SetHostOffer(ctx context.Context, sessionID, offer string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET host_offer = $2, updated_at = now()
		WHERE session_id = $1
	`, sessionID, offer)
	return err
}

func (r *sessionRepo) SetClientAnswer(ctx context.Context, sessionID, answer string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET client_answer = $2, updated_at = now()
		WHERE session_id = $1
	`, sessionID, answer)
	return err
}

func (r *sessionRepo) SetClientOffer(ctx context.Context, sessionID, offer string, iceCandidates []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			client_offer = $2,
			client_ice_candidates = coalesce(client_ice_candidates, '[]'::jsonb) || $3::jsonb,
			updated_at = now()
		WHERE session_id = $1
	`, sessionID, offer, iceCandidates)
	return err
}

func (r *sessionRepo) SetHostAnswer(ctx context.Context, sessionID, answer string, iceCandidates []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			host_answer = $2,
			host_ice_candidates = coalesce(host_ice_candidates, '[]'::jsonb) || $3::jsonb,
			updated_at = now()
		WHERE session_id = $1
	`, sessionID, answer, iceCandidates)
	return err
}

func (r *sessionRepo) AppendICECandidates(ctx context.Context, sessionID string, side model.SignalingRole, candidates []byte) error {
	col := "client_ice_candidates"
	if side == model.RoleHost {
		col = "host_ice_candidates"
	}
	query := fmt.Sprintf(`
		UPDATE sessions SET
			%[1]s = coalesce(%[1]s, '[]'::jsonb) || $2::jsonb,
			updated_at = now()
		WHERE session_id = $1
	`, col)
	_, err := r.db.ExecContext(ctx, query, sessionID, candidates)
	return err
}

func (r *sessionRepo) MarkNotificationSent(ctx context.Context, sessionID string, kind model.NotificationKind) (bool, error) {
	col := "start_notification_sent"
	if kind == model.NotificationEnd {
		col = "end_notification_sent"
	}
	query := fmt.Sprintf(`
		UPDATE sessions SET %[1]s = TRUE, updated_at = now()
		WHERE session_id = $1 AND %[1]s = FALSE
	`, col)
	result, err := r.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *sessionRepo) SweepExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'expired',
			ended_at = coalesce(ended_at, now()),
			updated_at = now()
		WHERE expires_at < now()
		AND status NOT IN ('disconnected', 'expired')
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.SelectContext(ctx, &counts, `
		SELECT status, count(*) AS count FROM sessions GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	return counts, nil
}
