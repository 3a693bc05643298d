package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
)

var (
	// errors
	ErrNotFound = errors.New("user not found")

	// OrderingFields are the fields API clients may order users by.
	OrderingFields = []string{"full_name", "email", "role", "created_at", "updated_at"}

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.FullName or User.Email.
		// Users are ordered by created_at DESC when no ordering is given.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, id string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
		CountUsersByRole(ctx context.Context) (map[string]int, error)
	}

	// Service is the profile store.
	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetProfile returns ErrNotFound when no profile is stored for the id.
func (svc *Service) GetProfile(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

// SetProfile stores the profile under its ID, creating or replacing it.
func (svc *Service) SetProfile(ctx context.Context, usr User) error {
	if usr.ID == "" {
		return errors.New("profile without ID")
	}
	now := nowFunc().UTC()
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = now
	}
	usr.UpdatedAt = now
	if usr.Role == "" {
		usr.Role = RoleStudent
	}

	if _, err := svc.repo.GetUser(ctx, usr.ID); err != nil {
		if errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "finding user by ID")
		}
		_, err = svc.repo.CreateUser(ctx, usr)
		return errors.Wrap(err, "creating user")
	}
	_, err := svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrderings(ordering, OrderingFields...))
}

// UpdateProfile applies validated profile changes.
func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	usr.FullName = up.FullName
	if up.AvatarURL != nil {
		usr.AvatarURL = *up.AvatarURL
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) UpdateRole(ctx context.Context, id, role string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Role = role
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids...)
	return err
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := svc.repo.CountUsersByRole(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting users")
	}
	stats := Stats{
		Students: counts[RoleStudent],
		Teachers: counts[RoleTeacher],
		Admins:   counts[RoleAdmin],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}
