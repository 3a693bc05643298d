package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/subject"
	"github.com/trezcool/rollcall/core/user"
)

var (
	// errors
	ErrNotAllowed = errors.New("only teachers and admins may mark attendance for other users")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		// QueryRecords returns the newest records first.
		QueryRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	}

	Service struct {
		repo     Repository
		classes  *class.Service
		subjects *subject.Service
	}
)

func NewService(repo Repository, classes *class.Service, subjects *subject.Service) *Service {
	return &Service{repo: repo, classes: classes, subjects: subjects}
}

// ListForUser returns the user's records, newest first, with their class and subject.
func (svc *Service) ListForUser(ctx context.Context, userID string) ([]Entry, error) {
	records, err := svc.repo.QueryRecords(ctx, RecordFilter{UserID: userID})
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	return svc.enrich(ctx, records)
}

func (svc *Service) enrich(ctx context.Context, records []Record) ([]Entry, error) {
	classIDs := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if !seen[r.ClassID] {
			seen[r.ClassID] = true
			classIDs = append(classIDs, r.ClassID)
		}
	}
	classes, err := svc.classes.GetByIDs(ctx, classIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "finding classes")
	}

	subjectIDs := make([]string, 0, len(classes))
	for _, c := range classes {
		subjectIDs = append(subjectIDs, c.SubjectID)
	}
	subjects, err := svc.subjects.GetByIDs(ctx, subjectIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "finding subjects")
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		e := Entry{Record: r}
		if c, ok := classes[r.ClassID]; ok {
			e.Class = &c
			if s, ok := subjects[c.SubjectID]; ok {
				e.Subject = &s
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Report aggregates every record of the user.
func (svc *Service) Report(ctx context.Context, userID string) (Report, error) {
	entries, err := svc.ListForUser(ctx, userID)
	if err != nil {
		return Report{}, err
	}
	return Aggregate(entries), nil
}

// Mark records attendance for data.UserID, or for markedBy when it is empty.
// Only staff may mark other users.
func (svc *Service) Mark(ctx context.Context, markedBy user.User, data MarkAttendance) (Record, error) {
	userID := data.UserID
	if userID == "" {
		userID = markedBy.ID
	}
	if userID != markedBy.ID && !markedBy.IsStaff() {
		return Record{}, ErrNotAllowed
	}
	if !data.Status.Valid() {
		return Record{}, core.NewFieldError("status", "status must be one of present, absent or late")
	}

	if _, err := svc.classes.GetByID(ctx, data.ClassID); err != nil {
		if errors.Cause(err) == class.ErrNotFound {
			return Record{}, core.NewFieldError("class_id", class.ErrNotFound.Error())
		}
		return Record{}, errors.Wrap(err, "finding class")
	}

	now := nowFunc().UTC()
	rec, err := svc.repo.CreateRecord(ctx, Record{
		ID:        uuid.New().String(),
		UserID:    userID,
		ClassID:   data.ClassID,
		Status:    data.Status,
		MarkedBy:  markedBy.ID,
		MarkedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return rec, errors.Wrap(err, "creating record")
}

// DailyClasses returns the classes held on date, with the user's latest attendance status for each.
func (svc *Service) DailyClasses(ctx context.Context, userID string, date time.Time) ([]DailyClass, error) {
	classes, err := svc.classes.QueryByDate(ctx, date)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	daily := make([]DailyClass, 0, len(classes))
	if len(classes) == 0 {
		return daily, nil
	}

	classIDs := make([]string, 0, len(classes))
	subjectIDs := make([]string, 0, len(classes))
	for _, c := range classes {
		classIDs = append(classIDs, c.ID)
		subjectIDs = append(subjectIDs, c.SubjectID)
	}
	subjects, err := svc.subjects.GetByIDs(ctx, subjectIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "finding subjects")
	}
	records, err := svc.repo.QueryRecords(ctx, RecordFilter{UserID: userID, ClassIDs: classIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	statuses := make(map[string]Status, len(records))
	for _, r := range records {
		if _, ok := statuses[r.ClassID]; !ok { // newest first
			statuses[r.ClassID] = r.Status
		}
	}

	for _, c := range classes {
		dc := DailyClass{Class: c}
		if s, ok := subjects[c.SubjectID]; ok {
			dc.Subject = &s
		}
		if st, ok := statuses[c.ID]; ok {
			dc.AttendanceStatus = &st
		}
		daily = append(daily, dc)
	}
	return daily, nil
}
