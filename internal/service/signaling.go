package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	apperrors "github.com/remotehand/signaling-server-go/internal/errors"
	"github.com/remotehand/signaling-server-go/internal/metrics"
	"github.com/remotehand/signaling-server-go/internal/model"
	"github.com/remotehand/signaling-server-go/internal/repository"
	"github.com/remotehand/signaling-server-go/internal/util"
)

// SignalingService implements the offer/answer/ICE relay between a host and
// a client. Payloads are opaque; the relay never parses SDP. Two flows exist
// per session and caller discipline picks one: host-initiated
// (hostOffer/clientAnswer) or client-initiated (clientOffer/hostAnswer).
// Delivery is polling-only; there is no push channel.
type SignalingService struct {
	sessionRepo repository.SessionRepository
	logRepo     repository.SessionLogRepository
	lifecycle   *SessionService
}

func NewSignalingService(
	sessionRepo repository.SessionRepository,
	logRepo repository.SessionLogRepository,
	lifecycle *SessionService,
) *SignalingService {
	return &SignalingService{
		sessionRepo: sessionRepo,
		logRepo:     logRepo,
		lifecycle:   lifecycle,
	}
}

type JoinResult struct {
	Success   bool    `json:"success"`
	SessionID string  `json:"sessionId"`
	HostOffer *string `json:"hostOffer"`
}

// SignalingData is the role-masked polling read. A client-role caller only
// ever sees the host's offer and candidates; a host-role caller only ever
// sees the client's answer and candidates.
type SignalingData struct {
	SessionID           string              `json:"sessionId"`
	Status              model.SessionStatus `json:"status"`
	HostOffer           *string             `json:"hostOffer,omitempty"`
	HostICECandidates   []string            `json:"hostIceCandidates,omitempty"`
	ClientAnswer        *string             `json:"clientAnswer,omitempty"`
	ClientICECandidates []string            `json:"clientIceCandidates,omitempty"`
}

type OfferResult struct {
	Offer         *string  `json:"offer"`
	ICECandidates []string `json:"iceCandidates"`
	ClientName    *string  `json:"clientName"`
}

type AnswerResult struct {
	Answer        *string  `json:"answer"`
	ICECandidates []string `json:"iceCandidates"`
}

// Join verifies the session password and hands the client the current host
// offer, which may still be null; the client keeps polling in that case.
// Join does not move the session status, so a second join with the correct
// password is accepted.
func (s *SignalingService) Join(ctx context.Context, sessionID, password, clientName, clientIP string) (*JoinResult, error) {
	session, err := s.lifecycle.Get(ctx, sessionID)
	if err != nil {
		metrics.JoinAttempts.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if err := requireLive(session); err != nil {
		metrics.JoinAttempts.WithLabelValues("terminal").Inc()
		return nil, err
	}
	if !util.VerifyPassword(password, session.PasswordHash) {
		metrics.JoinAttempts.WithLabelValues("invalid_password").Inc()
		return nil, apperrors.InvalidPassword()
	}

	if err := s.sessionRepo.SetClientInfo(ctx, sessionID, clientName, clientIP); err != nil {
		return nil, apperrors.Database(err)
	}
	session.ClientName = &clientName
	session.ClientIP = &clientIP

	s.lifecycle.logEvent(ctx, session, model.LogClientJoined, map[string]any{
		"clientName": clientName,
		"clientIp":   clientIP,
	})
	s.lifecycle.sendStartNotification(ctx, session)
	metrics.JoinAttempts.WithLabelValues("ok").Inc()

	log.Info().
		Str("sessionId", sessionID).
		Str("clientName", clientName).
		Msg("client joined session")

	return &JoinResult{Success: true, SessionID: sessionID, HostOffer: session.HostOffer}, nil
}

// SendOffer stores the host's offer (flow A, step 1). No status change.
func (s *SignalingService) SendOffer(ctx context.Context, sessionID, hostUserID, offer string) error {
	session, err := s.lifecycle.GetOwned(ctx, sessionID, hostUserID)
	if err != nil {
		return err
	}
	if err := requireLive(session); err != nil {
		return err
	}
	if offer == "" {
		return apperrors.MissingRequired("offer")
	}
	if err := s.sessionRepo.SetHostOffer(ctx, sessionID, offer); err != nil {
		return apperrors.Database(err)
	}
	metrics.SignalingOps.WithLabelValues("send_offer").Inc()
	return nil
}

// SendAnswer stores the client's answer and completes flow A. The password
// is re-verified on every call; the signaling channel carries no session.
func (s *SignalingService) SendAnswer(ctx context.Context, sessionID, password, answer string) error {
	session, err := s.lifecycle.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := requireLive(session); err != nil {
		return err
	}
	if !util.VerifyPassword(password, session.PasswordHash) {
		return apperrors.InvalidPassword()
	}
	if answer == "" {
		return apperrors.MissingRequired("answer")
	}
	if session.HostOffer == nil {
		return apperrors.ValidationError("No host offer to answer yet")
	}

	if err := s.sessionRepo.SetClientAnswer(ctx, sessionID, answer); err != nil {
		return apperrors.Database(err)
	}
	if _, err := s.lifecycle.UpdateStatus(ctx, sessionID, model.SessionStatusConnected); err != nil {
		return err
	}
	metrics.SignalingOps.WithLabelValues("send_answer").Inc()
	return nil
}

// SendICECandidate appends one candidate to the submitting side's list.
// Host calls require ownership, client calls require the password. The
// append is a single atomic UPDATE, so concurrent submissions from the same
// side never drop a candidate.
func (s *SignalingService) SendICECandidate(ctx context.Context, sessionID string, from model.SignalingRole, candidate, password, hostUserID string) error {
	if !from.Valid() {
		return apperrors.InvalidInput("from", "must be host or client")
	}
	if candidate == "" {
		return apperrors.MissingRequired("candidate")
	}

	session, err := s.lifecycle.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := requireLive(session); err != nil {
		return err
	}
	switch from {
	case model.RoleHost:
		if hostUserID == "" || hostUserID != session.HostUserID {
			return apperrors.Unauthorized("Not the session owner")
		}
	case model.RoleClient:
		if !util.VerifyPassword(password, session.PasswordHash) {
			return apperrors.InvalidPassword()
		}
	}

	encoded, err := json.Marshal([]string{candidate})
	if err != nil {
		return apperrors.Internal("encode candidate")
	}
	if err := s.sessionRepo.AppendICECandidates(ctx, sessionID, from, encoded); err != nil {
		return apperrors.Database(err)
	}
	metrics.SignalingOps.WithLabelValues("send_ice_candidate").Inc()
	return nil
}

// Data is the role-scoped polling read. Reads stay available on terminal
// sessions so pollers can observe the terminal status and stop.
func (s *SignalingService) Data(ctx context.Context, sessionID string, role model.SignalingRole, password, hostUserID string) (*SignalingData, error) {
	if !role.Valid() {
		return nil, apperrors.InvalidInput("role", "must be host or client")
	}

	session, err := s.lifecycle.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	data := &SignalingData{SessionID: sessionID, Status: session.Status}
	switch role {
	case model.RoleClient:
		if !util.VerifyPassword(password, session.PasswordHash) {
			return nil, apperrors.InvalidPassword()
		}
		data.HostOffer = session.HostOffer
		data.HostICECandidates = decodeCandidates(session.HostICECandidates)
	case model.RoleHost:
		if hostUserID == "" || hostUserID != session.HostUserID {
			return nil, apperrors.Unauthorized("Not the session owner")
		}
		data.ClientAnswer = session.ClientAnswer
		data.ClientICECandidates = decodeCandidates(session.ClientICECandidates)
	}
	metrics.SignalingOps.WithLabelValues("get_signaling_data").Inc()
	return data, nil
}

// SendOfferFromClient starts flow B: an agent-side client pushes its offer
// before the host has done anything. There is deliberately no password on
// this call; it serves a pre-authenticated agent channel and is gated by the
// public-route rate limiter only.
func (s *SignalingService) SendOfferFromClient(ctx context.Context, sessionID, offer string, iceCandidates []string) error {
	session, err := s.lifecycle.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := requireLive(session); err != nil {
		return err
	}
	if offer == "" {
		return apperrors.MissingRequired("offer")
	}

	encoded, err := json.Marshal(iceCandidates)
	if err != nil {
		return apperrors.Internal("encode candidates")
	}
	if iceCandidates == nil {
		encoded = []byte("[]")
	}
	if err := s.sessionRepo.SetClientOffer(ctx, sessionID, offer, encoded); err != nil {
		return apperrors.Database(err)
	}
	s.lifecycle.logEvent(ctx, session, model.LogClientOfferReceived, nil)
	if _, err := s.lifecycle.UpdateStatus(ctx, sessionID, model.SessionStatusConnecting); err != nil {
		return err
	}
	metrics.SignalingOps.WithLabelValues("send_offer_from_client").Inc()
	return nil
}

// Offer returns the client's offer to the owning host (flow B, step 2).
// All fields are null until the client has pushed.
func (s *SignalingService) Offer(ctx context.Context, sessionID, hostUserID string) (*OfferResult, error) {
	session, err := s.lifecycle.GetOwned(ctx, sessionID, hostUserID)
	if err != nil {
		return nil, err
	}
	metrics.SignalingOps.WithLabelValues("get_offer").Inc()
	return &OfferResult{
		Offer:         session.ClientOffer,
		ICECandidates: decodeCandidates(session.ClientICECandidates),
		ClientName:    session.ClientName,
	}, nil
}

// SendAnswerFromHost stores the host's answer and completes flow B.
func (s *SignalingService) SendAnswerFromHost(ctx context.Context, sessionID, hostUserID, answer string, iceCandidates []string) error {
	session, err := s.lifecycle.GetOwned(ctx, sessionID, hostUserID)
	if err != nil {
		return err
	}
	if err := requireLive(session); err != nil {
		return err
	}
	if answer == "" {
		return apperrors.MissingRequired("answer")
	}
	if session.ClientOffer == nil {
		return apperrors.ValidationError("No client offer to answer yet")
	}

	encoded, err := json.Marshal(iceCandidates)
	if err != nil {
		return apperrors.Internal("encode candidates")
	}
	if iceCandidates == nil {
		encoded = []byte("[]")
	}
	if err := s.sessionRepo.SetHostAnswer(ctx, sessionID, answer, encoded); err != nil {
		return apperrors.Database(err)
	}
	if _, err := s.lifecycle.UpdateStatus(ctx, sessionID, model.SessionStatusConnected); err != nil {
		return err
	}
	metrics.SignalingOps.WithLabelValues("send_answer_from_host").Inc()
	return nil
}

// Answer returns the host's answer to the polling client (flow B, step 4).
func (s *SignalingService) Answer(ctx context.Context, sessionID string) (*AnswerResult, error) {
	session, err := s.lifecycle.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	metrics.SignalingOps.WithLabelValues("get_answer").Inc()
	return &AnswerResult{
		Answer:        session.HostAnswer,
		ICECandidates: decodeCandidates(session.HostICECandidates),
	}, nil
}

// ClientDisconnect transitions the session to disconnected. Calling it on
// an already terminal session is an idempotent success.
func (s *SignalingService) ClientDisconnect(ctx context.Context, sessionID string) error {
	session, err := s.lifecycle.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return nil
	}

	rows, err := s.sessionRepo.UpdateStatus(ctx, sessionID, model.SessionStatusDisconnected)
	if err != nil {
		return apperrors.Database(err)
	}
	if rows == 0 {
		// Another caller finished the session first.
		return nil
	}

	s.lifecycle.logEvent(ctx, session, model.LogClientDisconnected, nil)
	s.lifecycle.sendEndNotification(ctx, session)
	metrics.StatusTransitions.WithLabelValues(string(model.SessionStatusDisconnected)).Inc()
	metrics.SignalingOps.WithLabelValues("client_disconnect").Inc()

	log.Info().Str("sessionId", sessionID).Msg("client disconnected")
	return nil
}

func requireLive(session *model.Session) error {
	switch session.Status {
	case model.SessionStatusExpired:
		return apperrors.Expired()
	case model.SessionStatusDisconnected:
		return apperrors.Ended()
	}
	return nil
}

func decodeCandidates(raw *json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var candidates []string
	if err := json.Unmarshal(*raw, &candidates); err != nil {
		log.Warn().Err(err).Msg("decode stored ice candidates")
		return nil
	}
	return candidates
}
