package main

import (
	"clurb/internal/domain"
	"clurb/internal/presence"
	"clurb/internal/progress"
	"clurb/internal/realtime"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type progressRows struct {
	mu   sync.Mutex
	rows []domain.ReadingProgress
}

func (r *progressRows) Upsert(_ context.Context, p *domain.ReadingProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *p)
	return nil
}

func (r *progressRows) Get(context.Context, uint64, uint64) (*domain.ReadingProgress, error) {
	return nil, gorm.ErrRecordNotFound
}

type noopRecorder struct{}

func (noopRecorder) Record(uint64, uint64, string, map[string]any) {}

func TestDrainSessions_FlushesProgressBeforeStreamsLeave(t *testing.T) {
	rows := &progressRows{}
	tracker := progress.NewTracker(rows, noopRecorder{}, time.Hour, zap.NewNop())
	presenceTracker := presence.NewTracker(presence.NewMemoryStore(), realtime.NewMemoryBroker(), zap.NewNop())
	presenceTracker.OnUserGone(tracker.Cancel)

	session, err := presenceTracker.Join(context.Background(), 7, 1)
	require.NoError(t, err)
	tracker.Record(7, 1, 5)

	drainSessions(tracker, func() { session.Leave() })

	rows.mu.Lock()
	defer rows.mu.Unlock()
	require.Len(t, rows.rows, 1)
	assert.Equal(t, 5, rows.rows[0].CurrentPage)
}
