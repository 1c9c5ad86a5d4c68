package echoapi

import (
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/student"
)

type studentApi struct {
	tracker  *student.Tracker
	validate *validator.Validate
}

func registerStudentAPI(app *echo.Echo, tracker *student.Tracker, validate *validator.Validate) {
	api := studentApi{
		tracker:  tracker,
		validate: validate,
	}

	sg := app.Group("/students")
	sg.POST("", api.create)
	sg.GET("", api.query)

	// detail endpoints
	dg := sg.Group("/:roll")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.POST("/grades", api.addGrade)
	dg.PUT("/grades/:subject", api.updateGrade)
	dg.DELETE("/grades/:subject", api.deleteGrade)

	app.GET("/api/statistics", api.statistics)
	app.GET("/health", api.health)
}

// pathParam returns the unescaped path parameter `name`.
func pathParam(ctx echo.Context, name string) string {
	val := ctx.Param(name)
	if unescaped, err := url.PathUnescape(val); err == nil {
		return unescaped
	}
	return val
}

func respond(ctx echo.Context, res student.Result, okCode int) error {
	return ctx.JSON(resultStatus(res, okCode), res)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data NewStudentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res := api.tracker.AddStudent(ctx.Request().Context(), data.Name, data.RollNumber)
	return respond(ctx, res, http.StatusCreated)
}

func (api *studentApi) query(ctx echo.Context) error {
	var ord Ordering
	if err := ord.Bind(ctx, student.OrderingFields); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.tracker.QueryStudents(ctx.Request().Context(), ord.Orderings))
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, ok := api.tracker.GetStudent(ctx.Request().Context(), pathParam(ctx, "roll"))
	if !ok {
		return errStudentNotFound
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	res := api.tracker.DeleteStudent(ctx.Request().Context(), pathParam(ctx, "roll"))
	return respond(ctx, res, http.StatusOK)
}

func (api *studentApi) bindGrade(ctx echo.Context) (GradeRequest, float64, error) {
	var data GradeRequest
	if err := ctx.Bind(&data); err != nil {
		return data, 0, errors.Wrap(err, "binding to GradeRequest")
	}
	data.RollNumber = pathParam(ctx, "roll")
	if subject := pathParam(ctx, "subject"); subject != "" {
		data.Subject = subject
	}
	if err := data.Validate(api.validate); err != nil {
		return data, 0, err
	}
	grade, err := data.Value()
	return data, grade, err
}

func (api *studentApi) addGrade(ctx echo.Context) error {
	data, grade, err := api.bindGrade(ctx)
	if err != nil {
		return err
	}
	res := api.tracker.AddGrade(ctx.Request().Context(), data.RollNumber, data.Subject, grade)
	return respond(ctx, res, http.StatusOK)
}

func (api *studentApi) updateGrade(ctx echo.Context) error {
	data, grade, err := api.bindGrade(ctx)
	if err != nil {
		return err
	}
	res := api.tracker.UpdateGrade(ctx.Request().Context(), data.RollNumber, data.Subject, grade)
	return respond(ctx, res, http.StatusOK)
}

func (api *studentApi) deleteGrade(ctx echo.Context) error {
	data := GradeKeyRequest{
		RollNumber: pathParam(ctx, "roll"),
		Subject:    pathParam(ctx, "subject"),
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	res := api.tracker.DeleteGrade(ctx.Request().Context(), data.RollNumber, data.Subject)
	return respond(ctx, res, http.StatusOK)
}

func (api *studentApi) statistics(ctx echo.Context) error {
	stats, err := api.tracker.GetStatistics(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, StatisticsError{Statistics: stats, Error: errStatistics})
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *studentApi) health(ctx echo.Context) error {
	if err := api.tracker.Ping(ctx.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
