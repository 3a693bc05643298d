package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/subject"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// Record is one attendance mark. Records are never updated once created.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ClassID   string    `json:"class_id"`
	Status    Status    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	MarkedAt  time.Time `json:"marked_at"`  // UTC
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Entry is a Record with its class and the class's subject, when they still exist.
type Entry struct {
	Record
	Class   *class.Class     `json:"class"`
	Subject *subject.Subject `json:"subject"`
}

// SubjectName returns the name entries are grouped by in reports.
func (e Entry) SubjectName() string {
	if e.Class == nil || e.Subject == nil || e.Subject.Name == "" {
		return UnknownSubject
	}
	return e.Subject.Name
}

type MarkAttendance struct {
	UserID  string `json:"user_id" validate:"omitempty,uuid"`
	ClassID string `json:"class_id" validate:"required,uuid"`
	Status  Status `json:"status" validate:"required,oneof=present absent late"`
}

func (ma *MarkAttendance) Validate(validate *validator.Validate) error {
	ma.UserID = core.CleanString(ma.UserID)
	ma.ClassID = core.CleanString(ma.ClassID)
	ma.Status = Status(core.CleanString(string(ma.Status), true /* lower */))
	return validate.Struct(ma)
}

type RecordFilter struct {
	UserID   string
	ClassIDs []string
}

// DailyClass is a class of the day with the user's attendance for it, if any.
type DailyClass struct {
	class.Class
	Subject          *subject.Subject `json:"subject"`
	AttendanceStatus *Status          `json:"attendance_status"`
}
