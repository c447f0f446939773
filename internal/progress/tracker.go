package progress

import (
	"clurb/internal/domain"
	"clurb/internal/metrics"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActivityRecorder appends best-effort activity events.
type ActivityRecorder interface {
	Record(userID, documentID uint64, action string, metadata map[string]any)
}

type key struct {
	documentID uint64
	userID     uint64
}

// pendingWrite is the single slot per (document, user) holding the latest page.
// Arming replaces the slot; the timer only writes if its slot is still current.
type pendingWrite struct {
	page  int
	timer *time.Timer
}

// Tracker debounces page changes so only the last page seen in a quiet
// window is persisted.
type Tracker struct {
	mu        sync.Mutex
	pending   map[key]*pendingWrite
	inflight  sync.WaitGroup
	closed    bool
	onWritten func(documentID, userID uint64)

	delay    time.Duration
	repo     Repository
	recorder ActivityRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewTracker(repo Repository, recorder ActivityRecorder, delay time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		pending:  make(map[key]*pendingWrite),
		delay:    delay,
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// OnWritten registers fn to run after each successful upsert.
func (t *Tracker) OnWritten(fn func(documentID, userID uint64)) {
	t.onWritten = fn
}

// Record arms (or re-arms) the debounce timer for the pair with page.
// After Close the page is written immediately.
func (t *Tracker) Record(documentID, userID uint64, page int) {
	k := key{documentID: documentID, userID: userID}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.write(k, page)
		return
	}
	defer t.mu.Unlock()

	if prev, ok := t.pending[k]; ok {
		prev.timer.Stop()
		metrics.ProgressCoalesced.Inc()
	}

	p := &pendingWrite{page: page}
	p.timer = time.AfterFunc(t.delay, func() { t.fire(k, p) })
	t.pending[k] = p
}

// Cancel clears the pair's timer. A write that has not fired yet is dropped.
func (t *Tracker) Cancel(documentID, userID uint64) {
	k := key{documentID: documentID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.pending[k]; ok {
		p.timer.Stop()
		delete(t.pending, k)
	}
}

// Pending reports the page waiting to be written for the pair, if any.
func (t *Tracker) Pending(documentID, userID uint64) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[key{documentID: documentID, userID: userID}]
	if !ok {
		return 0, false
	}
	return p.page, true
}

// Close stops accepting page changes and writes everything still pending.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	flush := make(map[key]int, len(t.pending))
	for k, p := range t.pending {
		p.timer.Stop()
		flush[k] = p.page
	}
	t.pending = make(map[key]*pendingWrite)
	t.mu.Unlock()

	for k, page := range flush {
		t.write(k, page)
	}
	t.inflight.Wait()
}

func (t *Tracker) fire(k key, p *pendingWrite) {
	t.mu.Lock()
	if t.pending[k] != p {
		t.mu.Unlock()
		return
	}
	delete(t.pending, k)
	t.inflight.Add(1)
	t.mu.Unlock()

	defer t.inflight.Done()
	t.write(k, p.page)
}

func (t *Tracker) write(k key, page int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := t.repo.Upsert(ctx, &domain.ReadingProgress{
		DocumentID:  k.documentID,
		UserID:      k.userID,
		CurrentPage: page,
		LastReadAt:  t.now().UTC(),
	})
	if err != nil {
		metrics.ProgressWrites.WithLabelValues("error").Inc()
		t.logger.Warn("reading progress write failed",
			zap.Uint64("document_id", k.documentID),
			zap.Uint64("user_id", k.userID),
			zap.Int("page", page),
			zap.Error(err))
		return
	}

	metrics.ProgressWrites.WithLabelValues("success").Inc()
	if t.onWritten != nil {
		t.onWritten(k.documentID, k.userID)
	}
	t.recorder.Record(k.userID, k.documentID, domain.ActionPageViewed, map[string]any{"page": page})
}
