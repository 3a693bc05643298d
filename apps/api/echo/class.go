package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/class"
)

type classApi struct {
	*Server
}

func registerClassAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := classApi{Server: s}

	cg := g.Group("/classes", authed...)
	cg.GET("", api.daily)
	cg.POST("", api.create, staffMiddleware())
}

// daily lists the classes of `?date=` (today by default) with the user's attendance status.
func (api *classApi) daily(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	date, err := bindDate(ctx)
	if err != nil {
		return err
	}

	classes, err := api.Attendance.DailyClasses(ctx.Request().Context(), usr.ID, date)
	if err != nil {
		return errors.Wrap(err, "listing daily classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if data.TeacherID == "" && usr.IsTeacher() {
		data.TeacherID = usr.ID
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	cls, err := api.Classes.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}
