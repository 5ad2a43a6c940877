package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/remotehand/signaling-server-go/internal/model"
	"github.com/remotehand/signaling-server-go/internal/repository"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindByPK(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) (int64, error) {
	args := m.Called(ctx, sessionID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) SetClientInfo(ctx context.Context, sessionID, clientName, clientIP string) error {
	args := m.Called(ctx, sessionID, clientName, clientIP)
	return args.Error(0)
}

func (m *mockSessionRepo) SetHostOffer(ctx context.Context, sessionID, offer string) error {
	args := m.Called(ctx, sessionID, offer)
	return args.Error(0)
}

func (m *mockSessionRepo) SetClientAnswer(ctx context.Context, sessionID, answer string) error {
	args := m.Called(ctx, sessionID, answer)
	return args.Error(0)
}

func (m *mockSessionRepo) SetClientOffer(ctx context.Context, sessionID, offer string, iceCandidates []byte) error {
	args := m.Called(ctx, sessionID, offer, iceCandidates)
	return args.Error(0)
}

func (m *mockSessionRepo) SetHostAnswer(ctx context.Context, sessionID, answer string, iceCandidates []byte) error {
	args := m.Called(ctx, sessionID, answer, iceCandidates)
	return args.Error(0)
}

func (m *mockSessionRepo) AppendICECandidates(ctx context.Context, sessionID string, side model.SignalingRole, candidates []byte) error {
	args := m.Called(ctx, sessionID, side, candidates)
	return args.Error(0)
}

func (m *mockSessionRepo) MarkNotificationSent(ctx context.Context, sessionID string, kind model.NotificationKind) (bool, error) {
	args := m.Called(ctx, sessionID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) CountByStatus(ctx context.Context) ([]repository.StatusCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.StatusCount), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockLogRepo struct {
	mock.Mock
}

func (m *mockLogRepo) Insert(ctx context.Context, params model.CreateSessionLogParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *mockLogRepo) ListBySession(ctx context.Context, sessionPK string) ([]model.SessionLog, error) {
	args := m.Called(ctx, sessionPK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SessionLog), args.Error(1)
}

func (m *mockLogRepo) WithTx(tx *sqlx.Tx) repository.SessionLogRepository {
	return m
}

type mockRecordingRepo struct {
	mock.Mock
}

func (m *mockRecordingRepo) FindByID(ctx context.Context, id string) (*model.Recording, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Recording), args.Error(1)
}

func (m *mockRecordingRepo) ListBySession(ctx context.Context, sessionPK string) ([]model.Recording, error) {
	args := m.Called(ctx, sessionPK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Recording), args.Error(1)
}

func (m *mockRecordingRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SessionStarted(ctx context.Context, session *model.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockNotifier) SessionEnded(ctx context.Context, session *model.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}
