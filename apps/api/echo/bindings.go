package echoapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=-average,name`; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context, allowed []string) error {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !contains(allowed, field) {
			return core.NewFieldValidationError(orderingParam, fmt.Sprintf("cannot order by %q", field))
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Requests accept form or JSON bodies.

type NewStudentRequest struct {
	Name       string `json:"name" form:"name" validate:"required,max=100,personname"`
	RollNumber string `json:"roll_number" form:"roll_number" validate:"required,max=20,rollnumber"`
}

func (r *NewStudentRequest) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	r.RollNumber = core.CleanString(r.RollNumber)
	return validate.Struct(r)
}

type GradeRequest struct {
	RollNumber string      `json:"roll_number" validate:"required,max=20,rollnumber"` // from path
	Subject    string      `json:"subject" form:"subject" validate:"required,max=50,subject"`
	Grade      json.Number `json:"grade" form:"grade" validate:"required,numeric"`
}

func (r *GradeRequest) Validate(validate *validator.Validate) error {
	r.RollNumber = core.CleanString(r.RollNumber)
	r.Subject = core.CleanString(r.Subject)
	r.Grade = json.Number(core.CleanString(string(r.Grade)))
	return validate.Struct(r)
}

// Value returns the parsed grade; range checks are left to the tracker.
func (r *GradeRequest) Value() (float64, error) {
	g, err := strconv.ParseFloat(string(r.Grade), 64)
	if err != nil {
		return 0, core.NewFieldValidationError("grade", "grade must be a number")
	}
	return g, nil
}

type GradeKeyRequest struct {
	RollNumber string `json:"roll_number" validate:"required,max=20,rollnumber"`
	Subject    string `json:"subject" validate:"required,max=50,subject"`
}

func (r *GradeKeyRequest) Validate(validate *validator.Validate) error {
	r.RollNumber = core.CleanString(r.RollNumber)
	r.Subject = core.CleanString(r.Subject)
	return validate.Struct(r)
}

// StatisticsError is returned with a 500 when statistics cannot be computed.
type StatisticsError struct {
	student.Statistics
	Error string `json:"error"`
}
