package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/session"
	"github.com/trezcool/rollcall/core/user"
)

const snapshotBuffer = 8

var errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, identity.ErrAccountDeactivated.Error())

type sessionApi struct {
	*Server
}

func registerSessionAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := sessionApi{Server: s}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signup", api.signUp)
	ag.POST("/signin", api.signIn)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	sg := ag.Group("", authed...)
	sg.POST("/signout", api.signOut)
	sg.POST("/token-refresh", api.refreshToken)
	sg.GET("/session", api.current)
	sg.GET("/session/events", api.events)
}

// resultJSON answers 200 on success, 400 otherwise.
func resultJSON(ctx echo.Context, res session.Result) error {
	code := http.StatusOK
	if !res.Success {
		code = http.StatusBadRequest
	}
	return ctx.JSON(code, res)
}

func (api *sessionApi) signUp(ctx echo.Context) error {
	var data identity.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	res := api.Auth.SignUp(ctx.Request().Context(), data)
	api.Metrics.AuthEvent("sign_up", res.Success)
	if res.Success {
		return ctx.JSON(http.StatusCreated, res)
	}
	return resultJSON(ctx, res)
}

func (api *sessionApi) signIn(ctx echo.Context) error {
	var data SignInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignInRequest")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	usr, res := api.Auth.SignIn(ctx.Request().Context(), data.Email, data.Password)
	api.Metrics.AuthEvent("sign_in", res.Success)
	if !res.Success {
		return resultJSON(ctx, res)
	}
	token, err := api.tokens.GenerateToken(api.tokens.Claims(*usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, SignInResponse{Token: token, User: *usr})
}

func (api *sessionApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	res := api.Auth.ResetPassword(ctx.Request().Context(), data.Email)
	api.Metrics.AuthEvent("password_reset", res.Success)
	return resultJSON(ctx, res)
}

func (api *sessionApi) confirmPasswordReset(ctx echo.Context) error {
	var data identity.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	res := api.Auth.ConfirmPasswordReset(ctx.Request().Context(), data)
	api.Metrics.AuthEvent("password_reset_confirm", res.Success)
	return resultJSON(ctx, res)
}

func (api *sessionApi) signOut(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	res := api.Auth.SignOut(ctx.Request().Context(), claims.Subject, claims.Id, time.Unix(claims.ExpiresAt, 0))
	api.Metrics.AuthEvent("sign_out", res.Success)
	return resultJSON(ctx, res)
}

func (api *sessionApi) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	// check if account is still active
	acc, err := api.Accounts.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == identity.ErrNotFound {
			return errUnauthorized
		}
		return errors.Wrap(err, "finding account by ID")
	}
	if !acc.IsActive {
		return errAccountDeactivated
	}
	if err = api.tokens.refreshable(claims); err != nil {
		api.Metrics.AuthEvent("token_refresh", false)
		return err
	}

	token, err := api.tokens.GenerateToken(api.tokens.Claims(usr, claims.OrigIssuedAt))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	api.Metrics.AuthEvent("token_refresh", true)
	return ctx.JSON(http.StatusOK, SignInResponse{Token: token, User: usr})
}

func (api *sessionApi) current(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

// events streams the session's snapshots as server-sent events, until the client leaves
// or the session ends.
func (api *sessionApi) events(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	snapshots := make(chan session.Snapshot, snapshotBuffer)
	onChange := func(snap session.Snapshot) {
		select {
		case snapshots <- snap:
		default: // slow client, the next snapshot supersedes this one
		}
	}
	m, err := api.Auth.Watch(reqCtx, claims.Id, claims.event(), onChange)
	if err != nil {
		return errors.Wrap(err, "watching session")
	}
	defer m.Close()

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	for {
		select {
		case <-reqCtx.Done():
			return nil
		case snap := <-snapshots:
			data, err := json.Marshal(snap)
			if err != nil {
				return errors.Wrap(err, "encoding snapshot")
			}
			if _, err = fmt.Fprintf(resp, "event: session\ndata: %s\n\n", data); err != nil {
				return nil // client gone
			}
			resp.Flush()
			if snap.State == session.StateAnonymous {
				return nil
			}
		}
	}
}

type (
	SignInRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	SignInResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (sr *SignInRequest) Validate(validate *validator.Validate) error {
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	return validate.Struct(sr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
