package echoapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/apps/api/echo"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/session"
	"github.com/trezcool/rollcall/core/user"
	"github.com/trezcool/rollcall/services/email"
	"github.com/trezcool/rollcall/testutil"
)

func result(msg string) session.Result {
	if msg == "" {
		return session.Result{Success: true}
	}
	return session.Result{Error: &msg}
}

func TestSessionAPI_signUp(t *testing.T) {
	app := setup(t)
	na := identity.NewAccount{
		FullName:        "Jane Doe",
		Email:           "Jane@School.test",
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
	}
	badRole := na
	badRole.Email, badRole.Role = "boss@school.test", user.RoleAdmin

	app.run(t, []httpTest{
		{
			name: "success", method: http.MethodPost, path: "/v1/auth/signup", body: marchallObj(t, na),
			wantCode: http.StatusCreated, wantData: marchallObj(t, result("")),
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/auth/signup", body: marchallObj(t, na),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, result(identity.ErrEmailExists.Error())),
		},
		{
			name: "cannot sign up as admin", method: http.MethodPost, path: "/v1/auth/signup", body: marchallObj(t, badRole),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"role": "role must be one of [student teacher]"}`),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/auth/signup", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"full_name": "this field is required",
				"email": "this field is required",
				"password": "this field is required",
				"password_confirm": "this field is required"
			}`),
		},
	})

	acc, err := app.Accounts.GetByEmail(context.Background(), "jane@school.test")
	require.NoError(t, err)
	usr, err := app.Users.GetProfile(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
}

func TestSessionAPI_signIn(t *testing.T) {
	app := setup(t)
	kid := app.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	app.CreateUser(t, "Principal", testutil.AdminEmail, user.RoleTeacher)

	signIn := func(email, pwd string) []byte {
		return marchallObj(t, echoapi.SignInRequest{Email: email, Password: pwd})
	}
	failed := marchallObj(t, result(identity.ErrAuthenticationFailed.Error()))

	app.run(t, []httpTest{
		{name: "wrong password", method: http.MethodPost, path: "/v1/auth/signin", body: signIn(kid.Email, "nope"), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "unknown email", method: http.MethodPost, path: "/v1/auth/signin", body: signIn("who@school.test", testutil.Password), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "missing password", method: http.MethodPost, path: "/v1/auth/signin", body: signIn(kid.Email, ""), wantCode: http.StatusBadRequest, wantData: []byte(`{"password": "this field is required"}`)},
	})

	tests := []struct {
		name     string
		email    string
		wantID   string
		wantRole string
	}{
		{name: "student", email: " KID@school.test", wantID: kid.ID, wantRole: user.RoleStudent},
		{name: "admin email", email: testutil.AdminEmail, wantRole: user.RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/v1/auth/signin", "", signIn(tt.email, testutil.Password))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.SignInResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.Equal(t, tt.wantRole, resp.User.Role)
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, resp.User.ID)
			}

			rec = app.do(http.MethodGet, "/v1/auth/session", resp.Token)
			require.Equal(t, http.StatusOK, rec.Code)
			var usr user.User
			unmarshal(t, rec, &usr)
			assert.Equal(t, resp.User.ID, usr.ID)
			assert.Equal(t, tt.wantRole, usr.Role)
		})
	}
}

func TestSessionAPI_session(t *testing.T) {
	app := setup(t)
	kid := app.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	token := app.getToken(t, kid)

	app.run(t, []httpTest{
		{name: "auth required", path: "/v1/auth/session", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/auth/session", token: "not.a.jwt", wantCode: http.StatusUnauthorized},
		{name: "current user", path: "/v1/auth/session", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, kid)},
	})

	t.Run("role changes apply to issued tokens", func(t *testing.T) {
		_, err := app.Users.UpdateRole(context.Background(), kid.ID, user.RoleTeacher)
		require.NoError(t, err)
		rec := app.do(http.MethodGet, "/v1/auth/session", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, user.RoleTeacher, usr.Role)
	})

	t.Run("sign out", func(t *testing.T) {
		other := app.getToken(t, kid)
		app.run(t, []httpTest{
			{name: "signout", method: http.MethodPost, path: "/v1/auth/signout", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, result(""))},
			{name: "token revoked", path: "/v1/auth/session", token: token, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "session has ended"})},
			{name: "other tokens still valid", path: "/v1/auth/session", token: other, wantCode: http.StatusOK},
		})
	})
}

func TestSessionAPI_refreshToken(t *testing.T) {
	app := setup(t)
	kid := app.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	token := app.getToken(t, kid)

	rec := app.do(http.MethodPost, "/v1/auth/token-refresh", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echoapi.SignInResponse
	unmarshal(t, rec, &resp)
	assert.NotEqual(t, token, resp.Token)
	assert.Equal(t, kid.ID, resp.User.ID)

	require.NoError(t, app.Accounts.SetActive(context.Background(), kid.ID, false))
	app.run(t, []httpTest{
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/auth/token-refresh", token: resp.Token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: identity.ErrAccountDeactivated.Error()}),
		},
	})
}

func TestSessionAPI_passwordReset(t *testing.T) {
	app := setup(t)
	kid := app.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	ok := marchallObj(t, result(""))

	app.run(t, []httpTest{
		{name: "unknown email", method: http.MethodPost, path: "/v1/auth/password-reset", body: []byte(`{"email": "who@school.test"}`), wantCode: http.StatusOK, wantData: ok},
		{name: "invalid email", method: http.MethodPost, path: "/v1/auth/password-reset", body: []byte(`{"email": "who"}`), wantCode: http.StatusBadRequest},
	})
	assert.Empty(t, emailsvc.SentMessages)

	rec := app.do(http.MethodPost, "/v1/auth/password-reset", "", []byte(`{"email": "KID@school.test"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent)
	assert.Equal(t, kid.Email, msg.To[0].Address)

	i := strings.Index(msg.TextContent, "uid=")
	require.True(t, i >= 0)
	parts := strings.SplitN(strings.TrimPrefix(strings.Fields(msg.TextContent[i:])[0], "uid="), "&token=", 2)
	require.Len(t, parts, 2)

	confirm := func(token string) []byte {
		return marchallObj(t, identity.ResetPassword{UID: parts[0], Token: token, Password: "N3w-Passw0rd!", PasswordConfirm: "N3w-Passw0rd!"})
	}
	app.run(t, []httpTest{
		{name: "bad token", method: http.MethodPost, path: "/v1/auth/password-reset-confirm", body: confirm("x-y"), wantCode: http.StatusBadRequest},
		{name: "confirm", method: http.MethodPost, path: "/v1/auth/password-reset-confirm", body: confirm(parts[1]), wantCode: http.StatusOK, wantData: ok},
	})

	_, res := app.Auth.SignIn(context.Background(), kid.Email, "N3w-Passw0rd!")
	assert.True(t, res.Success)
}

func TestSessionAPI_events(t *testing.T) {
	app := setup(t)
	kid := app.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	token := app.getToken(t, kid)

	srv := httptest.NewServer(app.server)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/auth/session/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	snapshots := make(chan session.Snapshot, 8)
	go func() {
		defer close(snapshots)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var snap struct {
				State string     `json:"state"`
				User  *user.User `json:"user"`
			}
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap) != nil {
				continue
			}
			var st session.State
			switch snap.State {
			case "loading":
				st = session.StateLoading
			case "authenticated":
				st = session.StateAuthenticated
			case "anonymous":
				st = session.StateAnonymous
			}
			snapshots <- session.Snapshot{State: st, User: snap.User}
		}
	}()

	next := func() session.Snapshot {
		t.Helper()
		select {
		case s, ok := <-snapshots:
			require.True(t, ok, "stream closed")
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no snapshot")
			return session.Snapshot{}
		}
	}

	snap := next()
	for snap.State == session.StateLoading {
		snap = next()
	}
	require.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, kid.ID, snap.User.ID)

	require.NoError(t, app.Auth.EndSessions(context.Background(), kid.ID, time.Minute))
	snap = next()
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.Nil(t, snap.User)

	select {
	case _, ok := <-snapshots:
		assert.False(t, ok, "stream ends with the session")
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}
}
