package chat

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"clurb/internal/metrics"
	"clurb/internal/realtime"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxContentLength = 2000

type Authorizer interface {
	Authorize(ctx context.Context, documentID, userID uint64) (*domain.Document, string, error)
}

type ActivityRecorder interface {
	Record(userID, documentID uint64, action string, metadata map[string]any)
}

type Service interface {
	Send(ctx context.Context, documentID, senderID uint64, content, clientID string) (*Message, error)
	Recent(ctx context.Context, documentID, userID uint64) ([]Message, error)
}

type Options struct {
	HistoryLimit  int
	RatePerSecond float64
}

type DefaultService struct {
	repository   Repository
	access       Authorizer
	broker       realtime.Broker
	recorder     ActivityRecorder
	limiter      *senderLimiter
	historyLimit int
	logger       *zap.Logger
}

func NewService(repository Repository, access Authorizer, broker realtime.Broker, recorder ActivityRecorder, opts Options, logger *zap.Logger) Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	return &DefaultService{
		repository:   repository,
		access:       access,
		broker:       broker,
		recorder:     recorder,
		limiter:      newSenderLimiter(opts.RatePerSecond),
		historyLimit: opts.HistoryLimit,
		logger:       logger,
	}
}

// Send stores the message and fans it out to every open stream of the
// document. clientID is echoed back so the sender can match its pending copy.
func (s *DefaultService) Send(ctx context.Context, documentID, senderID uint64, content, clientID string) (*Message, error) {
	if _, _, err := s.access.Authorize(ctx, documentID, senderID); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	length := utf8.RuneCountInString(content)
	if length == 0 || length > MaxContentLength {
		return nil, errors.UnprocessableEntity(fmt.Sprintf("message must be 1 to %d characters", MaxContentLength), nil)
	}

	if !s.limiter.Allow(senderID) {
		metrics.ChatMessages.WithLabelValues("rate_limited").Inc()
		return nil, errors.TooManyRequests("Sending too fast, slow down", nil)
	}

	if clientID == "" {
		clientID = uuid.NewString()
	}

	row := &domain.ChatMessage{
		DocumentID: documentID,
		SenderID:   senderID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repository.Create(ctx, row); err != nil {
		metrics.ChatMessages.WithLabelValues("error").Inc()
		return nil, errors.Internal(err)
	}
	metrics.ChatMessages.WithLabelValues("success").Inc()

	// the row is stored; a missing sender profile must not fail the send
	if sender, err := s.repository.FindUser(ctx, senderID); err == nil {
		row.Sender = *sender
	} else {
		s.logger.Warn("chat sender lookup failed", zap.Uint64("message_id", row.ID), zap.Error(err))
	}

	msg := toMessage(*row, clientID)
	s.publish(ctx, msg)

	// length only, never the content
	s.recorder.Record(senderID, documentID, domain.ActionChatMessageSent, map[string]any{"message_length": length})

	return &msg, nil
}

func (s *DefaultService) Recent(ctx context.Context, documentID, userID uint64) ([]Message, error) {
	if _, _, err := s.access.Authorize(ctx, documentID, userID); err != nil {
		return nil, err
	}

	rows, err := s.repository.Recent(ctx, documentID, s.historyLimit)
	if err != nil {
		return nil, errors.Internal(err)
	}

	messages := make([]Message, 0, len(rows))
	for _, r := range rows {
		messages = append(messages, toMessage(r, ""))
	}
	return messages, nil
}

// publish failures leave the row stored; peers pick it up on their next load.
func (s *DefaultService) publish(ctx context.Context, msg Message) {
	event, err := realtime.NewEvent(realtime.EventMessageInserted, msg)
	if err == nil {
		err = s.broker.Publish(ctx, realtime.DocumentTopic(msg.DocumentID), event)
	}
	if err != nil {
		s.logger.Warn("chat fan-out failed",
			zap.Uint64("document_id", msg.DocumentID),
			zap.Uint64("message_id", msg.ID),
			zap.Error(err))
	}
}
