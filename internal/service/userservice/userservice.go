package userservice

import (
	"context"
	"errors"

	"github.com/keybotdev/keybot/internal/domain"
	"go.uber.org/zap"
)

//go:generate mockgen -source=userservice.go -destination=mock_userservice.go -package=userservice

type Repo interface {
	Upsert(ctx context.Context, telegramID int64, firstName, username string) (*domain.User, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	SetBanned(ctx context.Context, telegramID int64, banned bool) error
	Count(ctx context.Context) (int64, error)
}

type Service struct {
	repo Repo
}

func New(repo Repo) *Service {
	return &Service{
		repo: repo,
	}
}

var ErrUserNotFound = errors.New("user not found")

// EnsureUser creates the user on first contact and refreshes profile fields
// after that. Callers check IsBanned on the returned user.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, firstName, username string) (*domain.User, error) {
	user, err := s.repo.Upsert(ctx, telegramID, firstName, username)
	if err != nil {
		zap.L().Error("failed to upsert user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, telegramID int64) (*domain.User, error) {
	user, err := s.repo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		zap.L().Error("failed to get user", zap.Error(err))
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	return s.repo.SetBanned(ctx, telegramID, banned)
}

func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
