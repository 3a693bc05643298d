package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/user"
)

type attendanceApi struct {
	*Server
}

func registerAttendanceAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := attendanceApi{Server: s}

	ag := g.Group("/attendance", authed...)
	ag.GET("", api.list)
	ag.POST("", api.mark)
	ag.GET("/report", api.report)
}

// targetUserID is the `?user_id=` param for staff, the context user otherwise.
func targetUserID(ctx echo.Context) (string, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return "", err
	}
	id := ctx.QueryParam("user_id")
	if id == "" || id == usr.ID {
		return usr.ID, nil
	}
	if !usr.IsStaff() {
		return "", errHttpForbidden
	}
	return id, nil
}

func (api *attendanceApi) list(ctx echo.Context) error {
	userID, err := targetUserID(ctx)
	if err != nil {
		return err
	}
	entries, err := api.Attendance.ListForUser(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing attendance")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *attendanceApi) report(ctx echo.Context) error {
	userID, err := targetUserID(ctx)
	if err != nil {
		return err
	}
	report, err := api.Attendance.Report(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "building report")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data attendance.MarkAttendance
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendance")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}
	if data.UserID != "" && data.UserID != usr.ID {
		if _, err = api.Users.GetProfile(ctx.Request().Context(), data.UserID); err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding user by ID")
		}
	}

	rec, err := api.Attendance.Mark(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	api.Metrics.AttendanceMarked(string(rec.Status))
	return ctx.JSON(http.StatusCreated, rec)
}
