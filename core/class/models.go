package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/rollcall/core"
)

// Class is one scheduled session of a subject.
type Class struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	TeacherID string    `json:"teacher_id"`
	Name      string    `json:"name"`
	Period    string    `json:"period"`
	Date      string    `json:"date"`       // YYYY-MM-DD
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewClass struct {
	SubjectID string `json:"subject_id" validate:"required,uuid"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid"`
	Name      string `json:"name" validate:"required,max=255"`
	Period    string `json:"period" validate:"required,max=64"`
	Date      string `json:"date" validate:"required,isodate"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.SubjectID = core.CleanString(nc.SubjectID)
	nc.TeacherID = core.CleanString(nc.TeacherID)
	nc.Name = core.CleanString(nc.Name)
	nc.Period = core.CleanString(nc.Period)
	nc.Date = core.CleanString(nc.Date)
	return validate.Struct(nc)
}
