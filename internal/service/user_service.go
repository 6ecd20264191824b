package service

import (
	"context"
	"time"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/repository"
)

// userService implements UserService
type userService struct {
	userRepo repository.UserRepository
}

// NewUserService creates a new UserService
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// SyncUser mirrors a user record from an identity-system event. The mirror is
// reference data only; grants and ownership key on the user ID.
func (s *userService) SyncUser(ctx context.Context, user *domain.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	return s.userRepo.Upsert(ctx, user)
}

// GetUser retrieves a mirrored user, nil when unknown
func (s *userService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
