package user

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"context"
	goErrors "errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const searchLimit = 20

// Service defines the interface for user business logic
type Service interface {
	Register(ctx context.Context, user *domain.User) error
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
	IncreaseTokenVersion(ctx context.Context, id uint64) error
	UpdateProfile(ctx context.Context, id uint64, input ProfileInput) (*domain.User, error)
	SearchUsers(ctx context.Context, query string, requesterID uint64) ([]domain.Profile, error)
}

type ProfileInput struct {
	DisplayName *string
	AvatarURL   *string
}

// DefaultService implements Service
type DefaultService struct {
	repository UserRepository
}

// NewService creates a new user service
func NewService(repository UserRepository) Service {
	return &DefaultService{repository: repository}
}

// Register registers a new user
func (s *DefaultService) Register(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Username = strings.TrimSpace(user.Username)

	if err := s.ensureFree(ctx, s.repository.FindByEmail, user.Email, "Email already registered"); err != nil {
		return err
	}
	if err := s.ensureFree(ctx, s.repository.FindByUsername, user.Username, "Username already taken"); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.UnprocessableEntity("Password cannot be used", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.Password = ""
	user.IsActive = true

	if err := s.repository.Create(ctx, user); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (s *DefaultService) ensureFree(ctx context.Context, find func(context.Context, string) (*domain.User, error), value, message string) error {
	_, err := find(ctx, value)
	if err == nil {
		return errors.UnprocessableEntity(message, nil)
	}
	if !goErrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Internal(err)
	}
	return nil
}

// Login authenticates a user
func (s *DefaultService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repository.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, errors.Unauthorized("Invalid email or password", err)
	}

	if !user.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.Unauthorized("Invalid email or password", err)
	}

	return user, nil
}

// GetUserByID gets a user by ID
func (s *DefaultService) GetUserByID(ctx context.Context, id uint64) (*domain.User, error) {
	user, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if goErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("User not found", err)
		}
		return nil, errors.Internal(err)
	}
	return user, nil
}

func (s *DefaultService) IncreaseTokenVersion(ctx context.Context, id uint64) error {
	return s.repository.IncreaseTokenVersion(ctx, id)
}

func (s *DefaultService) UpdateProfile(ctx context.Context, id uint64, input ProfileInput) (*domain.User, error) {
	fields := map[string]any{}
	if input.DisplayName != nil {
		fields["display_name"] = strings.TrimSpace(*input.DisplayName)
	}
	if input.AvatarURL != nil {
		fields["avatar_url"] = strings.TrimSpace(*input.AvatarURL)
	}

	if len(fields) > 0 {
		if err := s.repository.UpdateProfile(ctx, id, fields); err != nil {
			return nil, errors.Internal(err)
		}
	}
	return s.GetUserByID(ctx, id)
}

// SearchUsers finds other users to invite. Short queries return nothing.
func (s *DefaultService) SearchUsers(ctx context.Context, query string, requesterID uint64) ([]domain.Profile, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return []domain.Profile{}, nil
	}

	users, err := s.repository.Search(ctx, query, requesterID, searchLimit)
	if err != nil {
		return nil, errors.Internal(err)
	}

	profiles := make([]domain.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.ToProfile())
	}
	return profiles, nil
}
