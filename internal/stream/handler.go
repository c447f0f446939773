// Package stream serves a document's live channel as Server-Sent Events.
package stream

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"clurb/internal/metrics"
	"clurb/internal/presence"
	"clurb/internal/realtime"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Authorizer interface {
	Authorize(ctx context.Context, documentID, userID uint64) (*domain.Document, string, error)
}

type Handler struct {
	access    Authorizer
	tracker   *presence.Tracker
	broker    realtime.Broker
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewHandler(access Authorizer, tracker *presence.Tracker, broker realtime.Broker, heartbeat time.Duration, logger *zap.Logger) *Handler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Handler{
		access:    access,
		tracker:   tracker,
		broker:    broker,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Events streams presence_sync and message_inserted events for one document.
// Opening the stream joins presence; closing it leaves.
func (h *Handler) Events(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	userIDValue, _ := c.Get("user_id")
	userID := userIDValue.(uint64)
	ctx := c.Request.Context()

	if _, _, err := h.access.Authorize(ctx, docID, userID); err != nil {
		c.Error(err)
		return
	}

	// subscribe before joining so our own join's sync is delivered too
	sub, err := h.broker.Subscribe(ctx, realtime.DocumentTopic(docID))
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}
	defer sub.Close()

	session, err := h.tracker.Join(ctx, docID, userID)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}
	defer session.Leave()

	metrics.RealtimeStreams.Inc()
	defer metrics.RealtimeStreams.Dec()

	h.logger.Debug("stream opened", zap.Uint64("document_id", docID), zap.Uint64("user_id", userID))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, string(ev.Payload))
			return true

		case <-ticker.C:
			// membership can be revoked while the stream is open
			if _, _, err := h.access.Authorize(ctx, docID, userID); err != nil {
				h.logger.Info("closing stream, access revoked",
					zap.Uint64("document_id", docID),
					zap.Uint64("user_id", userID))
				return false
			}
			if err := session.Refresh(ctx); err != nil {
				h.logger.Warn("presence refresh failed", zap.Uint64("document_id", docID), zap.Error(err))
			}
			fmt.Fprint(w, ": heartbeat\n\n")
			return true

		case <-ctx.Done():
			return false
		}
	})

	h.logger.Debug("stream closed", zap.Uint64("document_id", docID), zap.Uint64("user_id", userID))
}
