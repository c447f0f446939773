package presence

import (
	"clurb/internal/realtime"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncPayload is published on every join and leave with the full member set.
type SyncPayload struct {
	DocumentID uint64   `json:"document_id"`
	Members    []Member `json:"members"`
}

type Tracker struct {
	store  Store
	broker realtime.Broker
	logger *zap.Logger
	now    func() time.Time
	onGone func(documentID, userID uint64)
}

func NewTracker(store Store, broker realtime.Broker, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:  store,
		broker: broker,
		logger: logger,
		now:    time.Now,
	}
}

// OnUserGone registers fn to run when a user's last connection to a document closes.
func (t *Tracker) OnUserGone(fn func(documentID, userID uint64)) {
	t.onGone = fn
}

// Session is one live connection's membership in a document channel.
type Session struct {
	tracker    *Tracker
	documentID uint64
	userID     uint64
	connID     string
	once       sync.Once
}

func (t *Tracker) Join(ctx context.Context, documentID, userID uint64) (*Session, error) {
	s := &Session{
		tracker:    t,
		documentID: documentID,
		userID:     userID,
		connID:     uuid.NewString(),
	}

	if err := t.store.Add(ctx, documentID, userID, s.connID, t.now().UTC()); err != nil {
		return nil, err
	}
	t.sync(ctx, documentID)
	return s, nil
}

// Refresh keeps this connection's presence entry alive.
func (s *Session) Refresh(ctx context.Context) error {
	return s.tracker.store.Refresh(ctx, s.documentID, s.userID, s.connID)
}

// Leave removes the connection. It runs detached from the request context,
// which is usually already cancelled by the time a stream ends.
func (s *Session) Leave() {
	s.once.Do(func() {
		t := s.tracker
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		gone, err := t.store.Remove(ctx, s.documentID, s.userID, s.connID)
		if err != nil {
			t.logger.Warn("presence leave failed",
				zap.Uint64("document_id", s.documentID),
				zap.Uint64("user_id", s.userID),
				zap.Error(err))
			return
		}
		if gone && t.onGone != nil {
			t.onGone(s.documentID, s.userID)
		}
		t.sync(ctx, s.documentID)
	})
}

func (t *Tracker) Members(ctx context.Context, documentID uint64) ([]Member, error) {
	return t.store.Members(ctx, documentID)
}

// Online returns the ids of users with at least one live connection.
func (t *Tracker) Online(ctx context.Context, documentID uint64) (map[uint64]struct{}, error) {
	members, err := t.store.Members(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return OnlineSet(members), nil
}

func OnlineSet(members []Member) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(members))
	for _, m := range members {
		set[m.UserID] = struct{}{}
	}
	return set
}

func (t *Tracker) sync(ctx context.Context, documentID uint64) {
	members, err := t.store.Members(ctx, documentID)
	if err != nil {
		t.logger.Warn("presence members lookup failed", zap.Uint64("document_id", documentID), zap.Error(err))
		return
	}

	event, err := realtime.NewEvent(realtime.EventPresenceSync, SyncPayload{
		DocumentID: documentID,
		Members:    members,
	})
	if err != nil {
		t.logger.Warn("presence sync encode failed", zap.Error(err))
		return
	}

	if err := t.broker.Publish(ctx, realtime.DocumentTopic(documentID), event); err != nil {
		t.logger.Warn("presence sync publish failed", zap.Uint64("document_id", documentID), zap.Error(err))
	}
}
