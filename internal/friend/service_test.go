package friend

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"context"
	goErrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindUser(ctx context.Context, id uint64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) FindByID(ctx context.Context, id uint64) (*domain.Friendship, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Friendship), args.Error(1)
}

func (m *MockRepository) FindBetween(ctx context.Context, a, b uint64) (*domain.Friendship, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Friendship), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, friendship *domain.Friendship) error {
	args := m.Called(ctx, friendship)
	return args.Error(0)
}

func (m *MockRepository) ListForUser(ctx context.Context, userID uint64) ([]domain.Friendship, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Friendship), args.Error(1)
}

func newService(repo *MockRepository) *DefaultService {
	return NewService(repo, zap.NewNop()).(*DefaultService)
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr *errors.APIError
	require.True(t, goErrors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, status, apiErr.Status)
}

func TestRequest_CreatesPending(t *testing.T) {
	repo := new(MockRepository)
	ctx := context.Background()

	repo.On("FindUser", ctx, uint64(2)).Return(&domain.User{ID: 2}, nil)
	repo.On("FindBetween", ctx, uint64(1), uint64(2)).Return(nil, gorm.ErrRecordNotFound)
	repo.On("Save", ctx, mock.MatchedBy(func(f *domain.Friendship) bool {
		return f.UserID == 1 && f.FriendID == 2 && f.Status == domain.FriendshipPending
	})).Return(nil)

	friendship, err := newService(repo).Request(ctx, 1, 2)

	require.NoError(t, err)
	assert.Equal(t, domain.FriendshipPending, friendship.Status)
	repo.AssertExpectations(t)
}

func TestRequest_Self(t *testing.T) {
	repo := new(MockRepository)

	_, err := newService(repo).Request(context.Background(), 1, 1)

	requireStatus(t, err, http.StatusUnprocessableEntity)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRequest_UnknownUser(t *testing.T) {
	repo := new(MockRepository)
	ctx := context.Background()
	repo.On("FindUser", ctx, uint64(9)).Return(nil, gorm.ErrRecordNotFound)

	_, err := newService(repo).Request(ctx, 1, 9)

	requireStatus(t, err, http.StatusUnprocessableEntity)
}

func TestRequest_ExistingRelationConflicts(t *testing.T) {
	for _, status := range []string{domain.FriendshipPending, domain.FriendshipAccepted} {
		t.Run(status, func(t *testing.T) {
			repo := new(MockRepository)
			ctx := context.Background()
			repo.On("FindUser", ctx, uint64(2)).Return(&domain.User{ID: 2}, nil)
			repo.On("FindBetween", ctx, uint64(1), uint64(2)).
				Return(&domain.Friendship{ID: 4, UserID: 2, FriendID: 1, Status: status}, nil)

			_, err := newService(repo).Request(ctx, 1, 2)

			requireStatus(t, err, http.StatusConflict)
			repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestRequest_DeclinedCanBeSentAgain(t *testing.T) {
	repo := new(MockRepository)
	ctx := context.Background()
	repo.On("FindUser", ctx, uint64(2)).Return(&domain.User{ID: 2}, nil)
	repo.On("FindBetween", ctx, uint64(1), uint64(2)).
		Return(&domain.Friendship{ID: 4, UserID: 2, FriendID: 1, Status: domain.FriendshipDeclined}, nil)
	repo.On("Save", ctx, mock.Anything).Return(nil)

	friendship, err := newService(repo).Request(ctx, 1, 2)

	require.NoError(t, err)
	assert.Equal(t, uint64(4), friendship.ID)
	assert.Equal(t, uint64(1), friendship.UserID)
	assert.Equal(t, uint64(2), friendship.FriendID)
	assert.Equal(t, domain.FriendshipPending, friendship.Status)
}

func TestRespond_Accept(t *testing.T) {
	repo := new(MockRepository)
	ctx := context.Background()
	repo.On("FindByID", ctx, uint64(4)).
		Return(&domain.Friendship{ID: 4, UserID: 1, FriendID: 2, Status: domain.FriendshipPending}, nil)
	repo.On("Save", ctx, mock.Anything).Return(nil)

	friendship, err := newService(repo).Respond(ctx, 4, 2, true)

	require.NoError(t, err)
	assert.Equal(t, domain.FriendshipAccepted, friendship.Status)
}

func TestRespond_Decline(t *testing.T) {
	repo := new(MockRepository)
	ctx := context.Background()
	repo.On("FindByID", ctx, uint64(4)).
		Return(&domain.Friendship{ID: 4, UserID: 1, FriendID: 2, Status: domain.FriendshipPending}, nil)
	repo.On("Save", ctx, mock.Anything).Return(nil)

	friendship, err := newService(repo).Respond(ctx, 4, 2, false)

	require.NoError(t, err)
	assert.Equal(t, domain.FriendshipDeclined, friendship.Status)
}

func TestRespond_OnlyAddresseeMayAnswer(t *testing.T) {
	repo := new(MockRepository)
	ctx := context.Background()
	repo.On("FindByID", ctx, uint64(4)).
		Return(&domain.Friendship{ID: 4, UserID: 1, FriendID: 2, Status: domain.FriendshipPending}, nil)

	_, err := newService(repo).Respond(ctx, 4, 1, true)

	requireStatus(t, err, http.StatusNotFound)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRespond_AlreadyAnswered(t *testing.T) {
	repo := new(MockRepository)
	ctx := context.Background()
	repo.On("FindByID", ctx, uint64(4)).
		Return(&domain.Friendship{ID: 4, UserID: 1, FriendID: 2, Status: domain.FriendshipAccepted}, nil)

	_, err := newService(repo).Respond(ctx, 4, 2, false)

	requireStatus(t, err, http.StatusUnprocessableEntity)
}

func TestList_SplitsByDirection(t *testing.T) {
	repo := new(MockRepository)
	ctx := context.Background()
	me := domain.User{ID: 1, Username: "me"}
	ann := domain.User{ID: 2, Username: "ann"}
	bob := domain.User{ID: 3, Username: "bob"}
	cat := domain.User{ID: 4, Username: "cat"}

	repo.On("ListForUser", ctx, uint64(1)).Return([]domain.Friendship{
		{ID: 10, UserID: 2, FriendID: 1, Status: domain.FriendshipAccepted, User: ann, Friend: me},
		{ID: 11, UserID: 3, FriendID: 1, Status: domain.FriendshipPending, User: bob, Friend: me},
		{ID: 12, UserID: 1, FriendID: 4, Status: domain.FriendshipPending, User: me, Friend: cat},
	}, nil)

	overview, err := newService(repo).List(ctx, 1)

	require.NoError(t, err)
	require.Len(t, overview.Friends, 1)
	assert.Equal(t, "ann", overview.Friends[0].Username)
	require.Len(t, overview.Incoming, 1)
	assert.Equal(t, uint64(11), overview.Incoming[0].ID)
	assert.Equal(t, "bob", overview.Incoming[0].User.Username)
	require.Len(t, overview.Outgoing, 1)
	assert.Equal(t, "cat", overview.Outgoing[0].User.Username)
}
