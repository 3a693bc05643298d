package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/user"
)

const unexpectedErrorText = "something went wrong, please try again"

// Result is the outcome of an authentication operation. Error is nil on success.
type Result struct {
	Error   *string `json:"error"`
	Success bool    `json:"success"`
}

func success() Result { return Result{Success: true} }

func failure(msg string) Result { return Result{Error: &msg} }

// ErrorText returns the error message, or an empty string on success.
func (r Result) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Auth fronts the identity provider and the profile store for session operations,
// and broadcasts authentication events to the subjects' sessions.
type Auth struct {
	accounts *identity.Service
	profiles *user.Service
	resolver *Resolver
	broker   Broker
	denylist Denylist
	logger   core.Logger
}

func NewAuth(
	accounts *identity.Service,
	profiles *user.Service,
	resolver *Resolver,
	broker Broker,
	denylist Denylist,
	logger core.Logger,
) *Auth {
	return &Auth{
		accounts: accounts,
		profiles: profiles,
		resolver: resolver,
		broker:   broker,
		denylist: denylist,
		logger:   logger,
	}
}

// failureOf turns err into a failed Result. Unexpected errors are logged and not shown.
func (a *Auth) failureOf(op string, err error) Result {
	cause := errors.Cause(err)
	switch {
	case core.IsValidationError(err),
		cause == identity.ErrAuthenticationFailed,
		cause == identity.ErrAccountDeactivated:
		return failure(cause.Error())
	}
	a.logger.Error(op, err)
	return failure(unexpectedErrorText)
}

// SignUp creates an account from validated sign-up data, then its profile.
func (a *Auth) SignUp(ctx context.Context, na identity.NewAccount) Result {
	acc, err := a.accounts.CreateAccount(ctx, na)
	if err != nil {
		return a.failureOf("signing up", err)
	}

	role := na.Role
	if role == "" {
		role = user.RoleStudent
	}
	err = a.profiles.SetProfile(ctx, user.User{
		ID:        acc.ID,
		Email:     acc.Email,
		FullName:  na.FullName,
		Role:      role,
		CreatedAt: acc.CreatedAt,
	})
	if err != nil {
		return a.failureOf("saving profile", err)
	}
	return success()
}

// SignIn authenticates the credentials and resolves the user behind them.
func (a *Auth) SignIn(ctx context.Context, email, pwd string) (*user.User, Result) {
	acc, err := a.accounts.Authenticate(ctx, email, pwd)
	if err != nil {
		return nil, a.failureOf("signing in", err)
	}

	evt := &Event{SubjectID: acc.ID, Email: acc.Email, DisplayName: acc.DisplayName}
	usr := a.resolver.Resolve(ctx, evt)
	if usr == nil {
		return nil, failure(unexpectedErrorText)
	}
	a.publish(ctx, acc.ID, evt)
	return usr, success()
}

// SignOut revokes the token until it expires and signs out the session holding it.
// The subject's other sessions stay signed in.
func (a *Auth) SignOut(ctx context.Context, subjectID, tokenID string, expiresAt time.Time) Result {
	if err := a.denylist.Revoke(ctx, TokenKey(tokenID), expiresAt.Sub(nowFunc())); err != nil {
		return a.failureOf("revoking token", err)
	}
	a.publish(ctx, subjectID, &Event{SubjectID: subjectID, SignedOutToken: tokenID})
	return success()
}

// ResetPassword emails a reset link. It succeeds for unknown emails too.
func (a *Auth) ResetPassword(ctx context.Context, email string) Result {
	if err := a.accounts.RequestPasswordReset(ctx, email); err != nil && errors.Cause(err) != identity.ErrNotFound {
		a.logger.Error("requesting password reset", err)
	}
	return success()
}

func (a *Auth) ConfirmPasswordReset(ctx context.Context, rp identity.ResetPassword) Result {
	if _, err := a.accounts.ResetPassword(ctx, rp); err != nil {
		return a.failureOf("resetting password", err)
	}
	return success()
}

// EndSessions revokes every token of the subject for ttl and signs its sessions out.
func (a *Auth) EndSessions(ctx context.Context, subjectID string, ttl time.Duration) error {
	if err := a.denylist.Revoke(ctx, SubjectKey(subjectID), ttl); err != nil {
		return errors.Wrap(err, "revoking subject")
	}
	a.publish(ctx, subjectID, nil)
	return nil
}

// DeleteUsers ends the sessions of the users for ttl, deactivates their accounts, then
// deletes their profiles. Requests made with their tokens are refused before the profiles
// go, so no resolution can synthesize them again.
func (a *Auth) DeleteUsers(ctx context.Context, ttl time.Duration, ids ...string) error {
	for _, id := range ids {
		if err := a.EndSessions(ctx, id, ttl); err != nil {
			return err
		}
		if err := a.accounts.SetActive(ctx, id, false); err != nil && errors.Cause(err) != identity.ErrNotFound {
			return errors.Wrap(err, "deactivating account")
		}
	}
	return errors.Wrap(a.profiles.Delete(ctx, ids...), "deleting profiles")
}

// IsRevoked reports whether the token, or every token of the subject, was revoked.
func (a *Auth) IsRevoked(ctx context.Context, subjectID, tokenID string) (bool, error) {
	if revoked, err := a.denylist.IsRevoked(ctx, SubjectKey(subjectID)); err != nil || revoked {
		return revoked, err
	}
	if tokenID == "" {
		return false, nil
	}
	return a.denylist.IsRevoked(ctx, TokenKey(tokenID))
}

// Notify makes the user's sessions resolve them again, eg: after a role change.
func (a *Auth) Notify(ctx context.Context, usr user.User) {
	a.publish(ctx, usr.ID, &Event{SubjectID: usr.ID, Email: usr.Email, DisplayName: usr.FullName})
}

func (a *Auth) Resolve(ctx context.Context, evt *Event) *user.User {
	return a.resolver.Resolve(ctx, evt)
}

// Watch runs a Manager over the events of the session holding tokenID, starting with
// initial, until ctx is done.
func (a *Auth) Watch(ctx context.Context, tokenID string, initial *Event, onChange func(Snapshot)) (*Manager, error) {
	subjectID := ""
	if initial != nil {
		subjectID = initial.SubjectID
	}
	events, err := a.broker.Subscribe(ctx, subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "subscribing to auth events")
	}

	m := NewManager(a.resolver, onChange)
	go func() {
		m.Mount()
		m.Handle(ctx, initial)
		m.Run(ctx, forToken(ctx, events, tokenID))
	}()
	return m, nil
}

// forToken turns the sign out of tokenID into a nil event and drops the sign outs of
// other tokens.
func forToken(ctx context.Context, events <-chan *Event, tokenID string) <-chan *Event {
	out := make(chan *Event, subscriberBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				if evt != nil && evt.SignedOutToken != "" {
					if evt.SignedOutToken != tokenID {
						continue
					}
					evt = nil
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (a *Auth) publish(ctx context.Context, subjectID string, evt *Event) {
	if err := a.broker.Publish(ctx, subjectID, evt); err != nil {
		a.logger.Error("publishing auth event", err, map[string]interface{}{"subject_id": subjectID})
	}
}
