package class

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/subject"
)

var (
	// errors
	ErrNotFound = errors.New("class not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClassesByID(ctx context.Context, ids ...string) ([]Class, error)
		// QueryClassesByDate orders classes by period, then name.
		QueryClassesByDate(ctx context.Context, date string) ([]Class, error)
	}

	Service struct {
		repo     Repository
		subjects *subject.Service
	}
)

func NewService(repo Repository, subjects *subject.Service) *Service {
	return &Service{repo: repo, subjects: subjects}
}

// Create schedules a class. The teacher defaults to the subject's teacher.
func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	subj, err := svc.subjects.GetByID(ctx, nc.SubjectID)
	if err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return Class{}, core.NewFieldError("subject_id", subject.ErrNotFound.Error())
		}
		return Class{}, errors.Wrap(err, "finding subject")
	}

	teacherID := nc.TeacherID
	if teacherID == "" {
		teacherID = subj.TeacherID
	}
	now := nowFunc().UTC()
	cls, err := svc.repo.CreateClass(ctx, Class{
		ID:        uuid.New().String(),
		SubjectID: subj.ID,
		TeacherID: teacherID,
		Name:      nc.Name,
		Period:    nc.Period,
		Date:      nc.Date,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return cls, errors.Wrap(err, "creating class")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Class, error) {
	classes, err := svc.repo.GetClassesByID(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if len(classes) == 0 {
		return Class{}, ErrNotFound
	}
	return classes[0], nil
}

// GetByIDs returns the classes found, keyed by ID. Unknown IDs are skipped.
func (svc *Service) GetByIDs(ctx context.Context, ids ...string) (map[string]Class, error) {
	classes := make(map[string]Class, len(ids))
	if len(ids) == 0 {
		return classes, nil
	}
	found, err := svc.repo.GetClassesByID(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, c := range found {
		classes[c.ID] = c
	}
	return classes, nil
}

func (svc *Service) QueryByDate(ctx context.Context, date time.Time) ([]Class, error) {
	return svc.repo.QueryClassesByDate(ctx, date.Format(core.DateLayout))
}
