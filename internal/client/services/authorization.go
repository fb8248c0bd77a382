package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

type authorizationPayload struct {
	RequestID int64  `json:"requestId"`
	Note      string `json:"note,omitempty"`
}

// AuthorizationService sends approve and reject decisions on remote
// requests. Decisions are never queued: without a connection they fail.
type AuthorizationService struct {
	remote client.Client
	log    logging.Logger
}

func NewAuthorizationService(remote client.Client, log logging.Logger) *AuthorizationService {
	if log == nil {
		log = logging.Discard()
	}
	return &AuthorizationService{remote: remote, log: log.With("component", "authorizations")}
}

func (s *AuthorizationService) Decide(ctx context.Context, requestID int64, approve bool, note string) models.AuthorizationResult {
	action := ActionReject
	if approve {
		action = ActionApprove
	}
	res := models.AuthorizationResult{RequestID: requestID, Action: action}

	reply, err := s.remote.Authorize(ctx, action, authorizationPayload{RequestID: requestID, Note: strings.TrimSpace(note)})
	if err != nil {
		res.Failure = classify(err)
		res.Message = err.Error()
		s.log.Warn(ctx, "authorization decision failed", "request", requestID, "action", action, "error", err)
		return res
	}
	if !reply.Success {
		res.Failure = models.FailureRemote
		res.Message = (&client.RemoteError{Status: reply.Status, Message: reply.Message}).Error()
		return res
	}

	res.Success = true
	res.Message = reply.Message
	s.log.Info(ctx, "authorization decision sent", "request", requestID, "action", action)
	return res
}
