package activity

import (
	"clurb/internal/domain"
	"clurb/internal/worker"
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Recorder appends activity events off the request path. Every failure,
// including a full queue, is logged and swallowed.
type Recorder struct {
	repo   Repository
	pool   *worker.WorkerPool
	logger *zap.Logger
}

func NewRecorder(repo Repository, pool *worker.WorkerPool, logger *zap.Logger) *Recorder {
	return &Recorder{repo: repo, pool: pool, logger: logger}
}

// Record queues an event. documentID 0 means the event is not tied to a document.
func (r *Recorder) Record(userID, documentID uint64, action string, metadata map[string]any) {
	event := &domain.ActivityEvent{
		UserID:     userID,
		ActionType: action,
		Metadata:   datatypes.JSONMap(metadata),
		CreatedAt:  time.Now().UTC(),
	}
	if documentID != 0 {
		id := documentID
		event.DocumentID = &id
	}

	submitted := r.pool.Submit(func(ctx context.Context) error {
		return r.repo.Create(ctx, event)
	})
	if !submitted {
		r.logger.Warn("activity event dropped",
			zap.Uint64("user_id", userID),
			zap.String("action", action))
	}
}
