package session_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/session"
	"github.com/trezcool/rollcall/core/user"
	"github.com/trezcool/rollcall/services/email"
	"github.com/trezcool/rollcall/storage/database/inmem"
	"github.com/trezcool/rollcall/testutil"
)

func TestAuth_SignUp(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	na := identity.NewAccount{
		FullName:        "Jane Doe",
		Email:           "jane@school.test",
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
		Role:            user.RoleTeacher,
	}
	res := env.Auth.SignUp(ctx, na)
	require.True(t, res.Success, res.ErrorText())
	assert.Nil(t, res.Error)

	acc, err := env.Accounts.GetByEmail(ctx, "jane@school.test")
	require.NoError(t, err)
	usr, err := env.Users.GetProfile(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", usr.FullName)
	assert.Equal(t, user.RoleTeacher, usr.Role)

	t.Run("duplicate email", func(t *testing.T) {
		res := env.Auth.SignUp(ctx, na)
		assert.False(t, res.Success)
		assert.Equal(t, identity.ErrEmailExists.Error(), res.ErrorText())
	})

	t.Run("lost profile keeps the sign up name", func(t *testing.T) {
		require.NoError(t, env.Users.Delete(ctx, acc.ID))
		usr, res := env.Auth.SignIn(ctx, na.Email, na.Password)
		require.True(t, res.Success, res.ErrorText())
		require.NotNil(t, usr)
		assert.Equal(t, "Jane Doe", usr.FullName)
		assert.Equal(t, user.RoleStudent, usr.Role)
	})

	t.Run("default role", func(t *testing.T) {
		na := na
		na.Email, na.Role = "kid@school.test", ""
		require.True(t, env.Auth.SignUp(ctx, na).Success)
		acc, err := env.Accounts.GetByEmail(ctx, na.Email)
		require.NoError(t, err)
		usr, err := env.Users.GetProfile(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleStudent, usr.Role)
	})
}

func TestAuth_SignIn(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	student := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	env.CreateUser(t, "Principal", testutil.AdminEmail, user.RoleTeacher)

	tests := []struct {
		name     string
		email    string
		pwd      string
		wantRole string
		wantErr  string
	}{
		{name: "student", email: "kid@school.test", pwd: testutil.Password, wantRole: user.RoleStudent},
		{name: "email is case insensitive", email: " KID@school.test", pwd: testutil.Password, wantRole: user.RoleStudent},
		{name: "admin email", email: testutil.AdminEmail, pwd: testutil.Password, wantRole: user.RoleAdmin},
		{name: "wrong password", email: "kid@school.test", pwd: "nope", wantErr: identity.ErrAuthenticationFailed.Error()},
		{name: "unknown email", email: "who@school.test", pwd: testutil.Password, wantErr: identity.ErrAuthenticationFailed.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, res := env.Auth.SignIn(ctx, tt.email, tt.pwd)
			if tt.wantErr != "" {
				assert.Nil(t, usr)
				assert.False(t, res.Success)
				assert.Equal(t, tt.wantErr, res.ErrorText())
				return
			}
			require.True(t, res.Success, res.ErrorText())
			require.NotNil(t, usr)
			assert.Equal(t, tt.wantRole, usr.Role)
		})
	}

	t.Run("deactivated account", func(t *testing.T) {
		require.NoError(t, env.Accounts.SetActive(ctx, student.ID, false))
		usr, res := env.Auth.SignIn(ctx, "kid@school.test", testutil.Password)
		assert.Nil(t, usr)
		assert.Equal(t, identity.ErrAccountDeactivated.Error(), res.ErrorText())
	})

	t.Run("account without profile", func(t *testing.T) {
		_, err := env.Accounts.SaveAccount(ctx, "ghost@school.test", testutil.Password)
		require.NoError(t, err)
		usr, res := env.Auth.SignIn(ctx, "ghost@school.test", testutil.Password)
		require.True(t, res.Success)
		require.NotNil(t, usr)
		assert.Equal(t, "ghost", usr.FullName)
		assert.Equal(t, user.RoleStudent, usr.Role)

		stored, err := env.Users.GetProfile(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, "ghost", stored.FullName)
	})
}

func TestAuth_SignOut(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	usr := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)

	events, err := env.Broker.Subscribe(ctx, usr.ID)
	require.NoError(t, err)

	res := env.Auth.SignOut(ctx, usr.ID, "token-1", time.Now().Add(time.Hour))
	require.True(t, res.Success)

	revoked, err := env.Auth.IsRevoked(ctx, usr.ID, "token-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = env.Auth.IsRevoked(ctx, usr.ID, "token-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	select {
	case evt := <-events:
		require.NotNil(t, evt)
		assert.Equal(t, "token-1", evt.SignedOutToken)
	case <-time.After(time.Second):
		t.Fatal("no sign out event")
	}
}

func TestAuth_SignOut_otherSessions(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	usr := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)

	snaps := make(chan session.Snapshot, 10)
	evt := &session.Event{SubjectID: usr.ID, Email: usr.Email}
	_, err := env.Auth.Watch(ctx, "token-B", evt, func(s session.Snapshot) { snaps <- s })
	require.NoError(t, err)
	next := nextSnapshot(t, snaps)
	assert.Equal(t, session.StateLoading, next().State)
	assert.Equal(t, session.StateAuthenticated, next().State)

	require.True(t, env.Auth.SignOut(ctx, usr.ID, "token-A", time.Now().Add(time.Hour)).Success)

	// events are handled in order: the snapshot after the sign out of token-A reflects
	// the role change, not a signed out session
	updated, err := env.Users.UpdateRole(ctx, usr.ID, user.RoleTeacher)
	require.NoError(t, err)
	env.Auth.Notify(ctx, updated)
	snap := next()
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, user.RoleTeacher, snap.User.Role)

	revoked, err := env.Auth.IsRevoked(ctx, usr.ID, "token-B")
	require.NoError(t, err)
	assert.False(t, revoked)
	revoked, err = env.Auth.IsRevoked(ctx, usr.ID, "token-A")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.True(t, env.Auth.SignOut(ctx, usr.ID, "token-B", time.Now().Add(time.Hour)).Success)
	assert.Equal(t, session.StateAnonymous, next().State)
	revoked, err = env.Auth.IsRevoked(ctx, usr.ID, "token-B")
	require.NoError(t, err)
	assert.True(t, revoked)
}

// nextSnapshot returns a func waiting for the next snapshot sent on snaps.
func nextSnapshot(t *testing.T, snaps <-chan session.Snapshot) func() session.Snapshot {
	return func() session.Snapshot {
		t.Helper()
		select {
		case s := <-snaps:
			return s
		case <-time.After(time.Second):
			t.Fatal("no snapshot")
		}
		return session.Snapshot{}
	}
}

func TestAuth_EndSessions(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)

	require.NoError(t, env.Auth.EndSessions(ctx, usr.ID, time.Hour))
	revoked, err := env.Auth.IsRevoked(ctx, usr.ID, "any-token")
	require.NoError(t, err)
	assert.True(t, revoked)
}

// deleteWatchingRepo calls onDelete before deleting profiles.
type deleteWatchingRepo struct {
	user.Repository
	onDelete func(ids []string)
}

func (repo deleteWatchingRepo) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	repo.onDelete(ids)
	return repo.Repository.DeleteUsersByID(ctx, ids...)
}

func TestAuth_DeleteUsers(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	kid := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	other := env.CreateUser(t, "Other", "other@school.test", user.RoleStudent)

	var auth *session.Auth
	deleted := 0
	users := user.NewService(deleteWatchingRepo{
		Repository: inmemdb.NewUserRepository(env.DB),
		onDelete: func(ids []string) {
			for _, id := range ids {
				if id != kid.ID {
					continue
				}
				deleted++
				revoked, err := auth.IsRevoked(ctx, id, "any-token")
				require.NoError(t, err)
				assert.True(t, revoked, "tokens revoked before the profile is deleted")
				acc, err := env.Accounts.GetByID(ctx, id)
				require.NoError(t, err)
				assert.False(t, acc.IsActive, "account deactivated before the profile is deleted")
			}
		},
	})
	resolver := session.NewResolver(users, env.Logger, env.Conf.AdminEmails...)
	auth = session.NewAuth(env.Accounts, users, resolver, env.Broker, env.Denylist, env.Logger)

	require.NoError(t, auth.DeleteUsers(ctx, time.Hour, kid.ID, "no-such-user"))
	assert.Equal(t, 1, deleted)

	_, err := users.GetProfile(ctx, kid.ID)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	_, err = users.GetProfile(ctx, other.ID)
	assert.NoError(t, err)
	revoked, err := auth.IsRevoked(ctx, other.ID, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestAuth_ResetPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)

	res := env.Auth.ResetPassword(ctx, "who@school.test")
	assert.True(t, res.Success)
	assert.Len(t, emailsvc.SentMessages, 0)

	res = env.Auth.ResetPassword(ctx, usr.Email)
	assert.True(t, res.Success)
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, usr.Email, msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "/password-reset-confirm?uid=")

	t.Run("confirm with a bad token", func(t *testing.T) {
		acc, err := env.Accounts.GetByEmail(ctx, usr.Email)
		require.NoError(t, err)
		res := env.Auth.ConfirmPasswordReset(ctx, identity.ResetPassword{
			UID:             identity.EncodeUID(acc),
			Token:           "bad-token",
			Password:        "N3w-Passw0rd!",
			PasswordConfirm: "N3w-Passw0rd!",
		})
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.ErrorText())
	})

	t.Run("confirm with the emailed token", func(t *testing.T) {
		uid, token := linkParams(t, msg.TextContent)
		res := env.Auth.ConfirmPasswordReset(ctx, identity.ResetPassword{
			UID:             uid,
			Token:           token,
			Password:        "N3w-Passw0rd!",
			PasswordConfirm: "N3w-Passw0rd!",
		})
		require.True(t, res.Success, res.ErrorText())

		_, res = env.Auth.SignIn(ctx, usr.Email, "N3w-Passw0rd!")
		assert.True(t, res.Success)
	})
}

// linkParams extracts uid & token from the password reset link in an email.
func linkParams(t *testing.T, content string) (string, string) {
	t.Helper()
	i := strings.Index(content, "uid=")
	require.True(t, i >= 0, "no reset link in %q", content)
	fields := strings.Fields(content[i:])
	query := strings.TrimPrefix(fields[0], "uid=")
	parts := strings.SplitN(query, "&token=", 2)
	require.Len(t, parts, 2)
	return parts[0], parts[1]
}

func TestAuth_Watch(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	usr := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)

	snaps := make(chan session.Snapshot, 10)
	m, err := env.Auth.Watch(ctx, "t1", &session.Event{SubjectID: usr.ID, Email: usr.Email}, func(s session.Snapshot) { snaps <- s })
	require.NoError(t, err)
	next := nextSnapshot(t, snaps)

	assert.Equal(t, session.StateLoading, next().State)
	snap := next()
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, user.RoleStudent, snap.User.Role)

	updated, err := env.Users.UpdateRole(ctx, usr.ID, user.RoleTeacher)
	require.NoError(t, err)
	env.Auth.Notify(ctx, updated)
	snap = next()
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, user.RoleTeacher, snap.User.Role)

	require.True(t, env.Auth.SignOut(ctx, usr.ID, "t1", time.Now().Add(time.Hour)).Success)
	assert.Equal(t, session.StateAnonymous, next().State)

	cancel()
	assert.Eventually(t, m.Closed, time.Second, 10*time.Millisecond)
}
