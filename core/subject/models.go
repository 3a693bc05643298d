package subject

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/rollcall/core"
)

type Subject struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	TeacherID   string    `json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewSubject struct {
	Name        string `json:"name" validate:"required,max=255"`
	Code        string `json:"code" validate:"required,alphanum_,max=32"`
	Description string `json:"description"`
	TeacherID   string `json:"teacher_id" validate:"required,uuid"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code)
	ns.Description = core.CleanString(ns.Description)
	ns.TeacherID = core.CleanString(ns.TeacherID)
	return validate.Struct(ns)
}

// UpdateSubject replaces every field of a Subject but its ID.
type UpdateSubject NewSubject

func (us *UpdateSubject) Validate(validate *validator.Validate) error {
	return (*NewSubject)(us).Validate(validate)
}

type QueryFilter struct {
	Name      string
	TeacherID string
}
