package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/subject"
)

type subjectApi struct {
	*Server
}

func registerSubjectAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := subjectApi{Server: s}

	sg := g.Group("/subjects", authed...)
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware())

	dg := sg.Group("/:id", adminMiddleware(), api.objectMiddleware)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// objectMiddleware loads the subject of the `:id` param as "object".
func (api *subjectApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		subj, err := api.Subjects.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == subject.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding subject by ID")
		}
		ctx.Set("object", subj)
		return next(ctx)
	}
}

func (api *subjectApi) query(ctx echo.Context) error {
	filter := subject.QueryFilter{
		Name:      ctx.QueryParam("name"),
		TeacherID: ctx.QueryParam("teacher_id"),
	}
	subjects, err := api.Subjects.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []subject.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *subjectApi) create(ctx echo.Context) error {
	var data subject.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	subj, err := api.Subjects.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subj)
}

func (api *subjectApi) update(ctx echo.Context) error {
	subj, ok := ctx.Get("object").(subject.Subject)
	if !ok {
		return errors.New("subject object not found in echo.Context")
	}

	var data subject.UpdateSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	subj, err := api.Subjects.Update(ctx.Request().Context(), subj, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, subj)
}

func (api *subjectApi) destroy(ctx echo.Context) error {
	subj, ok := ctx.Get("object").(subject.Subject)
	if !ok {
		return errors.New("subject object not found in echo.Context")
	}
	if err := api.Subjects.Delete(ctx.Request().Context(), subj.ID); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}
