package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/user"
	"github.com/trezcool/rollcall/testutil"
)

func TestService_SetProfile(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	require.NoError(t, env.Users.SetProfile(ctx, user.User{ID: "u1", Email: "kid@school.test", FullName: "Kid"}))
	usr, err := env.Users.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.False(t, usr.CreatedAt.IsZero())
	created := usr.CreatedAt

	usr.FullName = "Kiddo"
	require.NoError(t, env.Users.SetProfile(ctx, usr))
	usr, err = env.Users.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Kiddo", usr.FullName)
	assert.Equal(t, created, usr.CreatedAt)

	assert.Error(t, env.Users.SetProfile(ctx, user.User{Email: "x@school.test"}))

	_, err = env.Users.GetProfile(ctx, "nope")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_Query(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	kid := env.CreateUser(t, "Kid Smith", "kid@school.test", user.RoleStudent)
	time.Sleep(time.Millisecond)
	prof := env.CreateUser(t, "Prof Brown", "prof@school.test", user.RoleTeacher)
	time.Sleep(time.Millisecond)
	boss := env.CreateUser(t, "Boss", "boss@school.test", user.RoleAdmin)

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		want     []user.User
	}{
		{name: "all, newest first", want: []user.User{boss, prof, kid}},
		{name: "search name", filter: &user.QueryFilter{Search: "smith"}, want: []user.User{kid}},
		{name: "search email", filter: &user.QueryFilter{Search: "PROF@"}, want: []user.User{prof}},
		{name: "roles", filter: &user.QueryFilter{Roles: []string{"student", "admin"}}, want: []user.User{boss, kid}},
		{name: "created from", filter: &user.QueryFilter{CreatedFrom: prof.CreatedAt}, want: []user.User{boss, prof}},
		{name: "created to", filter: &user.QueryFilter{CreatedTo: prof.CreatedAt}, want: []user.User{prof, kid}},
		{
			name:     "ordering",
			ordering: []core.DBOrdering{{Field: "full_name", Ascending: true}},
			want:     []user.User{boss, kid, prof},
		},
		{
			name:     "unknown ordering field is ignored",
			ordering: []core.DBOrdering{{Field: "password", Ascending: true}},
			want:     []user.User{boss, prof, kid},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.Users.Query(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_UpdateRole(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	kid := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)

	usr, err := env.Users.UpdateRole(ctx, kid.ID, user.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, usr.Role)

	_, err = env.Users.UpdateRole(ctx, "nope", user.RoleTeacher)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_UpdateProfile(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	kid := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	validate, _ := testutil.NewValidator()

	avatar := "https://cdn.school.test/kid.png"
	up := user.UpdateProfile{FullName: " ", AvatarURL: &avatar}
	require.NoError(t, up.Validate(kid, validate))
	usr, err := env.Users.UpdateProfile(ctx, kid, up)
	require.NoError(t, err)
	assert.Equal(t, "Kid", usr.FullName)
	assert.Equal(t, avatar, usr.AvatarURL)

	bad := "not a url"
	up = user.UpdateProfile{AvatarURL: &bad}
	assert.Error(t, up.Validate(kid, validate))
}

func TestService_StatsAndDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	kid := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	env.CreateUser(t, "Kid 2", "kid2@school.test", user.RoleStudent)
	env.CreateUser(t, "Prof", "prof@school.test", user.RoleTeacher)

	stats, err := env.Users.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.Stats{Total: 3, Students: 2, Teachers: 1}, stats)

	require.NoError(t, env.Users.Delete(ctx, kid.ID))
	stats, err = env.Users.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.Stats{Total: 2, Students: 1, Teachers: 1}, stats)
}

func TestUpdateRole_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	for role, valid := range map[string]bool{"Teacher": true, "admin": true, "janitor": false, "": false} {
		ur := user.UpdateRole{Role: role}
		err := ur.Validate(validate)
		assert.Equal(t, valid, err == nil, role)
	}
}
