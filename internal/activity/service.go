package activity

import (
	"clurb/internal/domain"
	"context"
	"time"
)

type Service interface {
	Recent(ctx context.Context, userID uint64, limit int) ([]domain.ActivityEvent, error)
	Summary(ctx context.Context, userID uint64, days int) (*Summary, error)
	DailyPages(ctx context.Context, userID uint64, days int) ([]DailyPages, error)
}

type Summary struct {
	Days         int  `json:"days"`
	HasActivity  bool `json:"has_activity"`
	PagesViewed  int  `json:"pages_viewed"`
	NotesCreated int  `json:"notes_created"`
	MessagesSent int  `json:"messages_sent"`
	BooksRead    int  `json:"books_read"`
}

type DailyPages struct {
	Date  string `json:"date"`
	Pages int    `json:"pages"`
}

type DefaultService struct {
	repository Repository
	now        func() time.Time
}

func NewService(repository Repository) Service {
	return &DefaultService{repository: repository, now: time.Now}
}

func (s *DefaultService) Recent(ctx context.Context, userID uint64, limit int) ([]domain.ActivityEvent, error) {
	return s.repository.ListRecent(ctx, userID, limit)
}

func (s *DefaultService) Summary(ctx context.Context, userID uint64, days int) (*Summary, error) {
	events, err := s.repository.ListSince(ctx, userID, s.since(days))
	if err != nil {
		return nil, err
	}
	summary := summarize(events)
	summary.Days = days
	return &summary, nil
}

func (s *DefaultService) DailyPages(ctx context.Context, userID uint64, days int) ([]DailyPages, error) {
	events, err := s.repository.ListSince(ctx, userID, s.since(days))
	if err != nil {
		return nil, err
	}
	return dailyPages(events, s.now().UTC(), days), nil
}

func (s *DefaultService) since(days int) time.Time {
	return s.now().UTC().AddDate(0, 0, -days)
}

func summarize(events []domain.ActivityEvent) Summary {
	var summary Summary
	books := make(map[uint64]struct{})

	for _, e := range events {
		switch e.ActionType {
		case domain.ActionPageViewed:
			summary.PagesViewed++
		case domain.ActionStickyNoteCreated:
			summary.NotesCreated++
		case domain.ActionChatMessageSent:
			summary.MessagesSent++
		}
		if e.DocumentID != nil {
			books[*e.DocumentID] = struct{}{}
		}
	}

	summary.BooksRead = len(books)
	summary.HasActivity = len(events) > 0
	return summary
}

// dailyPages buckets page_viewed events per UTC day, oldest first, with a
// zero entry for every day in the window.
func dailyPages(events []domain.ActivityEvent, now time.Time, days int) []DailyPages {
	result := make([]DailyPages, 0, days)
	index := make(map[string]int, days)

	for i := days - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format(time.DateOnly)
		index[date] = len(result)
		result = append(result, DailyPages{Date: date})
	}

	for _, e := range events {
		if e.ActionType != domain.ActionPageViewed {
			continue
		}
		if i, ok := index[e.CreatedAt.UTC().Format(time.DateOnly)]; ok {
			result[i].Pages++
		}
	}
	return result
}
