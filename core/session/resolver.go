// Package session turns authentication events into the current user.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/user"
)

const defaultFullName = "User"

var nowFunc = time.Now // mockable

// Event is an authentication state change for a signed-in subject.
// A nil *Event means signed out. An Event with SignedOutToken signs out only the
// session holding that token.
type Event struct {
	SubjectID      string `json:"subject_id"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name,omitempty"`
	SignedOutToken string `json:"signed_out_token,omitempty"`
}

// ProfileStore is where user profiles live. GetProfile returns user.ErrNotFound for unknown IDs.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (user.User, error)
	SetProfile(ctx context.Context, usr user.User) error
}

// Resolver resolves the User behind an authentication Event.
type Resolver struct {
	store       ProfileStore
	logger      core.Logger
	adminEmails map[string]bool
}

func NewResolver(store ProfileStore, logger core.Logger, adminEmails ...string) *Resolver {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[e] = true
	}
	return &Resolver{store: store, logger: logger, adminEmails: admins}
}

// IsAdminEmail reports whether users signed in with email always resolve to admins.
func (r *Resolver) IsAdminEmail(email string) bool {
	return r.adminEmails[email]
}

// Resolve returns nil when evt is nil or the profile cannot be fetched.
// A missing profile is synthesized from the event and saved, best effort.
// Users signed in with an admin email are admins, whatever their stored role.
func (r *Resolver) Resolve(ctx context.Context, evt *Event) *user.User {
	if evt == nil {
		return nil
	}

	usr, err := r.store.GetProfile(ctx, evt.SubjectID)
	switch {
	case err == nil:
	case errors.Cause(err) == user.ErrNotFound:
		usr = synthesize(evt)
		if err = r.store.SetProfile(ctx, usr); err != nil {
			r.logger.Error("saving synthesized profile", err, map[string]interface{}{"subject_id": evt.SubjectID})
		}
	default:
		r.logger.Error("fetching profile", err, map[string]interface{}{"subject_id": evt.SubjectID})
		return nil
	}

	if r.IsAdminEmail(evt.Email) {
		usr.Role = user.RoleAdmin
	}
	return &usr
}

func synthesize(evt *Event) user.User {
	name := core.CleanString(evt.DisplayName)
	if name == "" {
		name = strings.SplitN(evt.Email, "@", 2)[0]
	}
	if name == "" {
		name = defaultFullName
	}
	now := nowFunc().UTC()
	return user.User{
		ID:        evt.SubjectID,
		Email:     evt.Email,
		FullName:  name,
		Role:      user.RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
