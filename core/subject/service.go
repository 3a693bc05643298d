package subject

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
)

var (
	// errors
	ErrNotFound   = errors.New("subject not found")
	ErrCodeExists = errors.New("a subject with this code already exists")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckCodeUniqueness returns ErrCodeExists when a Subject other than excludedIDs uses the code.
		CheckCodeUniqueness(ctx context.Context, code string, excludedIDs ...string) error
		CreateSubject(ctx context.Context, subj Subject) (Subject, error)
		// QuerySubjects orders subjects by name.
		QuerySubjects(ctx context.Context, filter QueryFilter) ([]Subject, error)
		GetSubjectsByID(ctx context.Context, ids ...string) ([]Subject, error)
		UpdateSubject(ctx context.Context, subj Subject) (Subject, error)
		DeleteSubjectsByID(ctx context.Context, ids ...string) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func codeExistsErr() error {
	return core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
}

func (svc *Service) Create(ctx context.Context, ns NewSubject) (Subject, error) {
	if err := svc.repo.CheckCodeUniqueness(ctx, ns.Code); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return Subject{}, codeExistsErr()
		}
		return Subject{}, errors.Wrap(err, "checking code uniqueness")
	}

	now := nowFunc().UTC()
	subj, err := svc.repo.CreateSubject(ctx, Subject{
		ID:          uuid.New().String(),
		Name:        ns.Name,
		Code:        ns.Code,
		Description: ns.Description,
		TeacherID:   ns.TeacherID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return Subject{}, codeExistsErr()
		}
		return Subject{}, errors.Wrap(err, "creating subject")
	}
	return subj, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Subject, error) {
	filter.Name = core.CleanString(filter.Name)
	return svc.repo.QuerySubjects(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Subject, error) {
	subjects, err := svc.repo.GetSubjectsByID(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	if len(subjects) == 0 {
		return Subject{}, ErrNotFound
	}
	return subjects[0], nil
}

// GetByIDs returns the subjects found, keyed by ID. Unknown IDs are skipped.
func (svc *Service) GetByIDs(ctx context.Context, ids ...string) (map[string]Subject, error) {
	subjects := make(map[string]Subject, len(ids))
	if len(ids) == 0 {
		return subjects, nil
	}
	found, err := svc.repo.GetSubjectsByID(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, s := range found {
		subjects[s.ID] = s
	}
	return subjects, nil
}

func (svc *Service) Update(ctx context.Context, subj Subject, us UpdateSubject) (Subject, error) {
	if err := svc.repo.CheckCodeUniqueness(ctx, us.Code, subj.ID); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return Subject{}, codeExistsErr()
		}
		return Subject{}, errors.Wrap(err, "checking code uniqueness")
	}

	subj.Name = us.Name
	subj.Code = us.Code
	subj.Description = us.Description
	subj.TeacherID = us.TeacherID
	subj.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateSubject(ctx, subj)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteSubjectsByID(ctx, ids...)
	return err
}
