package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/remotehand/signaling-server-go/internal/errors"
	"github.com/remotehand/signaling-server-go/internal/model"
)

func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }

func newSignalingFixture(sessionRepo *mockSessionRepo, logRepo *mockLogRepo, notifier *mockNotifier) *SignalingService {
	lifecycle := NewSessionService(sessionRepo, logRepo, new(mockRecordingRepo), notifier)
	return NewSignalingService(sessionRepo, logRepo, lifecycle)
}

func strPtr(s string) *string { return &s }

func TestJoin(t *testing.T) {
	t.Run("wrong password is refused before any write", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(newTestSession(model.SessionStatusWaiting), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		_, err := svc.Join(context.Background(), testSessionID, "WRONGPWD", "Alice", "10.0.0.1")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidPassword, apperrors.GetCode(err))
		sessionRepo.AssertNotCalled(t, "SetClientInfo", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("correct password returns the host offer and notifies once", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		logRepo := new(mockLogRepo)
		notifier := new(mockNotifier)
		session := newTestSession(model.SessionStatusWaiting)
		session.HostOffer = strPtr("sdp-offer")
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session, nil)
		sessionRepo.On("SetClientInfo", mock.Anything, testSessionID, "Alice", "10.0.0.1").Return(nil)
		sessionRepo.On("MarkNotificationSent", mock.Anything, testSessionID, model.NotificationStart).Return(true, nil)
		logRepo.On("Insert", mock.Anything, mock.MatchedBy(func(p model.CreateSessionLogParams) bool {
			return p.Event == model.LogClientJoined
		})).Return(nil)
		notifier.On("SessionStarted", mock.Anything, mock.Anything).Return(nil)

		svc := newSignalingFixture(sessionRepo, logRepo, notifier)
		result, err := svc.Join(context.Background(), testSessionID, testPassword, "Alice", "10.0.0.1")

		require.NoError(t, err)
		assert.True(t, result.Success)
		require.NotNil(t, result.HostOffer)
		assert.Equal(t, "sdp-offer", *result.HostOffer)
		notifier.AssertNumberOfCalls(t, "SessionStarted", 1)
		// Join never moves the status; a rejoin with the right password works.
		sessionRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejoin does not re-send the start notification", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		logRepo := new(mockLogRepo)
		notifier := new(mockNotifier)
		session := newTestSession(model.SessionStatusConnected)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session, nil)
		sessionRepo.On("SetClientInfo", mock.Anything, testSessionID, "Alice", "10.0.0.1").Return(nil)
		sessionRepo.On("MarkNotificationSent", mock.Anything, testSessionID, model.NotificationStart).Return(false, nil)
		logRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

		svc := newSignalingFixture(sessionRepo, logRepo, notifier)
		_, err := svc.Join(context.Background(), testSessionID, testPassword, "Alice", "10.0.0.1")

		require.NoError(t, err)
		notifier.AssertNotCalled(t, "SessionStarted", mock.Anything, mock.Anything)
	})

	t.Run("terminal sessions refuse joins", func(t *testing.T) {
		for _, tc := range []struct {
			status model.SessionStatus
			code   apperrors.ErrorCode
		}{
			{model.SessionStatusExpired, apperrors.ErrCodeExpired},
			{model.SessionStatusDisconnected, apperrors.ErrCodeEnded},
		} {
			sessionRepo := new(mockSessionRepo)
			sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(newTestSession(tc.status), nil)

			svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
			_, err := svc.Join(context.Background(), testSessionID, testPassword, "Alice", "10.0.0.1")

			require.Error(t, err)
			assert.Equal(t, tc.code, apperrors.GetCode(err))
		}
	})
}

func TestSendAnswer(t *testing.T) {
	t.Run("requires a host offer first", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(newTestSession(model.SessionStatusWaiting), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		err := svc.SendAnswer(context.Background(), testSessionID, testPassword, "sdp-answer")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("stores the answer and completes the handshake", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		logRepo := new(mockLogRepo)
		session := newTestSession(model.SessionStatusWaiting)
		session.HostOffer = strPtr("sdp-offer")
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session, nil)
		sessionRepo.On("SetClientAnswer", mock.Anything, testSessionID, "sdp-answer").Return(nil)
		sessionRepo.On("UpdateStatus", mock.Anything, testSessionID, model.SessionStatusConnected).Return(int64(1), nil)
		logRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

		svc := newSignalingFixture(sessionRepo, logRepo, new(mockNotifier))
		err := svc.SendAnswer(context.Background(), testSessionID, testPassword, "sdp-answer")

		require.NoError(t, err)
		sessionRepo.AssertExpectations(t)
	})
}

func TestSendICECandidate(t *testing.T) {
	t.Run("rejects an unknown side", func(t *testing.T) {
		svc := newSignalingFixture(new(mockSessionRepo), new(mockLogRepo), new(mockNotifier))
		err := svc.SendICECandidate(context.Background(), testSessionID, "observer", "cand", "", "")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("client side needs the password", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(newTestSession(model.SessionStatusConnected), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		err := svc.SendICECandidate(context.Background(), testSessionID, model.RoleClient, "cand", "WRONGPWD", "")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidPassword, apperrors.GetCode(err))
		sessionRepo.AssertNotCalled(t, "AppendICECandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("host side needs ownership", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(newTestSession(model.SessionStatusConnected), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		err := svc.SendICECandidate(context.Background(), testSessionID, model.RoleHost, "cand", "", "someone-else")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})

	t.Run("appends a single-element JSON array", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(newTestSession(model.SessionStatusConnected), nil)
		sessionRepo.On("AppendICECandidates", mock.Anything, testSessionID, model.RoleClient, []byte(`["cand-1"]`)).Return(nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		err := svc.SendICECandidate(context.Background(), testSessionID, model.RoleClient, "cand-1", testPassword, "")

		require.NoError(t, err)
		sessionRepo.AssertExpectations(t)
	})
}

func TestSignalingData(t *testing.T) {
	session := func() *model.Session {
		s := newTestSession(model.SessionStatusConnected)
		s.HostOffer = strPtr("host-offer")
		s.ClientAnswer = strPtr("client-answer")
		hostIce := rawJSON(`["h1","h2"]`)
		clientIce := rawJSON(`["c1"]`)
		s.HostICECandidates = &hostIce
		s.ClientICECandidates = &clientIce
		return s
	}

	t.Run("client sees only host-side data", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session(), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		data, err := svc.Data(context.Background(), testSessionID, model.RoleClient, testPassword, "")

		require.NoError(t, err)
		require.NotNil(t, data.HostOffer)
		assert.Equal(t, "host-offer", *data.HostOffer)
		assert.Equal(t, []string{"h1", "h2"}, data.HostICECandidates)
		assert.Nil(t, data.ClientAnswer)
		assert.Nil(t, data.ClientICECandidates)
	})

	t.Run("host sees only client-side data", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session(), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		data, err := svc.Data(context.Background(), testSessionID, model.RoleHost, "", testHostID)

		require.NoError(t, err)
		require.NotNil(t, data.ClientAnswer)
		assert.Equal(t, "client-answer", *data.ClientAnswer)
		assert.Equal(t, []string{"c1"}, data.ClientICECandidates)
		assert.Nil(t, data.HostOffer)
		assert.Nil(t, data.HostICECandidates)
	})

	t.Run("reads stay available on a finished session", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		s := session()
		s.Status = model.SessionStatusDisconnected
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(s, nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		data, err := svc.Data(context.Background(), testSessionID, model.RoleClient, testPassword, "")

		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusDisconnected, data.Status)
	})

	t.Run("client password is checked", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session(), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		_, err := svc.Data(context.Background(), testSessionID, model.RoleClient, "WRONGPWD", "")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidPassword, apperrors.GetCode(err))
	})
}

func TestClientInitiatedFlow(t *testing.T) {
	t.Run("client offer moves the session to connecting", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		logRepo := new(mockLogRepo)
		session := newTestSession(model.SessionStatusWaiting)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session, nil)
		sessionRepo.On("SetClientOffer", mock.Anything, testSessionID, "agent-offer", []byte(`["c1","c2"]`)).Return(nil)
		sessionRepo.On("UpdateStatus", mock.Anything, testSessionID, model.SessionStatusConnecting).Return(int64(1), nil)
		logRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

		svc := newSignalingFixture(sessionRepo, logRepo, new(mockNotifier))
		err := svc.SendOfferFromClient(context.Background(), testSessionID, "agent-offer", []string{"c1", "c2"})

		require.NoError(t, err)
		sessionRepo.AssertExpectations(t)
	})

	t.Run("host answer requires a client offer", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(newTestSession(model.SessionStatusWaiting), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		err := svc.SendAnswerFromHost(context.Background(), testSessionID, testHostID, "host-answer", nil)

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("host answer completes the handshake", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		logRepo := new(mockLogRepo)
		session := newTestSession(model.SessionStatusConnecting)
		session.ClientOffer = strPtr("agent-offer")
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session, nil)
		sessionRepo.On("SetHostAnswer", mock.Anything, testSessionID, "host-answer", []byte(`[]`)).Return(nil)
		sessionRepo.On("UpdateStatus", mock.Anything, testSessionID, model.SessionStatusConnected).Return(int64(1), nil)
		logRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

		svc := newSignalingFixture(sessionRepo, logRepo, new(mockNotifier))
		err := svc.SendAnswerFromHost(context.Background(), testSessionID, testHostID, "host-answer", nil)

		require.NoError(t, err)
		sessionRepo.AssertExpectations(t)
	})

	t.Run("answer poll returns host answer and candidates", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		session := newTestSession(model.SessionStatusConnected)
		session.HostAnswer = strPtr("host-answer")
		ice := rawJSON(`["h1"]`)
		session.HostICECandidates = &ice
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session, nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		result, err := svc.Answer(context.Background(), testSessionID)

		require.NoError(t, err)
		require.NotNil(t, result.Answer)
		assert.Equal(t, "host-answer", *result.Answer)
		assert.Equal(t, []string{"h1"}, result.ICECandidates)
	})
}

func TestClientDisconnect(t *testing.T) {
	t.Run("live session disconnects and notifies once", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		logRepo := new(mockLogRepo)
		notifier := new(mockNotifier)
		session := newTestSession(model.SessionStatusConnected)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(session, nil)
		sessionRepo.On("UpdateStatus", mock.Anything, testSessionID, model.SessionStatusDisconnected).Return(int64(1), nil)
		sessionRepo.On("MarkNotificationSent", mock.Anything, testSessionID, model.NotificationEnd).Return(true, nil)
		logRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
		notifier.On("SessionEnded", mock.Anything, mock.Anything).Return(nil)

		svc := newSignalingFixture(sessionRepo, logRepo, notifier)
		err := svc.ClientDisconnect(context.Background(), testSessionID)

		require.NoError(t, err)
		notifier.AssertNumberOfCalls(t, "SessionEnded", 1)
	})

	t.Run("disconnecting a finished session is a no-op", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(newTestSession(model.SessionStatusDisconnected), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), new(mockNotifier))
		err := svc.ClientDisconnect(context.Background(), testSessionID)

		require.NoError(t, err)
		sessionRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("losing the disconnect race is still success", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		notifier := new(mockNotifier)
		sessionRepo.On("FindBySessionID", mock.Anything, testSessionID).Return(newTestSession(model.SessionStatusConnected), nil)
		sessionRepo.On("UpdateStatus", mock.Anything, testSessionID, model.SessionStatusDisconnected).Return(int64(0), nil)

		svc := newSignalingFixture(sessionRepo, new(mockLogRepo), notifier)
		err := svc.ClientDisconnect(context.Background(), testSessionID)

		require.NoError(t, err)
		notifier.AssertNotCalled(t, "SessionEnded", mock.Anything, mock.Anything)
	})
}
