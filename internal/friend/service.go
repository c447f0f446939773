package friend

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"context"
	goErrors "errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service interface {
	Request(ctx context.Context, userID, friendID uint64) (*domain.Friendship, error)
	Respond(ctx context.Context, id, userID uint64, accept bool) (*domain.Friendship, error)
	List(ctx context.Context, userID uint64) (*Overview, error)
	Friends(ctx context.Context, userID uint64) ([]domain.Profile, error)
}

// Request is a pending friendship seen from one side.
type Request struct {
	ID        uint64         `json:"id"`
	User      domain.Profile `json:"user"`
	CreatedAt time.Time      `json:"created_at"`
}

type Overview struct {
	Friends  []domain.Profile `json:"friends"`
	Incoming []Request        `json:"incoming"`
	Outgoing []Request        `json:"outgoing"`
}

type DefaultService struct {
	repository Repository
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(repository Repository, logger *zap.Logger) Service {
	return &DefaultService{repository: repository, logger: logger, now: time.Now}
}

func (s *DefaultService) Request(ctx context.Context, userID, friendID uint64) (*domain.Friendship, error) {
	if userID == friendID {
		return nil, errors.UnprocessableEntity("You cannot add yourself as a friend", nil)
	}
	if _, err := s.repository.FindUser(ctx, friendID); err != nil {
		if goErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.UnprocessableEntity("User not found", err)
		}
		return nil, err
	}

	now := s.now().UTC()
	existing, err := s.repository.FindBetween(ctx, userID, friendID)
	switch {
	case err == nil:
		switch existing.Status {
		case domain.FriendshipAccepted:
			return nil, errors.Conflict("You are already friends", nil)
		case domain.FriendshipPending:
			return nil, errors.Conflict("A friend request is already pending", nil)
		}
		// a declined request may be sent again, by either side
		existing.UserID = userID
		existing.FriendID = friendID
		existing.Status = domain.FriendshipPending
		existing.UpdatedAt = now
		if err := s.repository.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !goErrors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	friendship := &domain.Friendship{
		UserID:    userID,
		FriendID:  friendID,
		Status:    domain.FriendshipPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repository.Save(ctx, friendship); err != nil {
		return nil, err
	}
	s.logger.Info("friend request sent", zap.Uint64("user_id", userID), zap.Uint64("friend_id", friendID))
	return friendship, nil
}

// Respond accepts or declines a pending request addressed to userID.
func (s *DefaultService) Respond(ctx context.Context, id, userID uint64, accept bool) (*domain.Friendship, error) {
	friendship, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if goErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Friend request not found", err)
		}
		return nil, err
	}
	if friendship.FriendID != userID {
		return nil, errors.NotFound("Friend request not found", nil)
	}
	if friendship.Status != domain.FriendshipPending {
		return nil, errors.UnprocessableEntity("Friend request was already answered", nil)
	}

	friendship.Status = domain.FriendshipDeclined
	if accept {
		friendship.Status = domain.FriendshipAccepted
	}
	friendship.UpdatedAt = s.now().UTC()
	if err := s.repository.Save(ctx, friendship); err != nil {
		return nil, err
	}
	return friendship, nil
}

func (s *DefaultService) List(ctx context.Context, userID uint64) (*Overview, error) {
	rows, err := s.repository.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		Friends:  []domain.Profile{},
		Incoming: []Request{},
		Outgoing: []Request{},
	}
	for i := range rows {
		row := &rows[i]
		other := row.Other(userID).ToProfile()
		switch {
		case row.Status == domain.FriendshipAccepted:
			overview.Friends = append(overview.Friends, other)
		case row.FriendID == userID:
			overview.Incoming = append(overview.Incoming, Request{ID: row.ID, User: other, CreatedAt: row.CreatedAt})
		default:
			overview.Outgoing = append(overview.Outgoing, Request{ID: row.ID, User: other, CreatedAt: row.CreatedAt})
		}
	}
	return overview, nil
}

func (s *DefaultService) Friends(ctx context.Context, userID uint64) ([]domain.Profile, error) {
	overview, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return overview.Friends, nil
}
