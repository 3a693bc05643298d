package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/rollcall/core/subject"
)

type subjectRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Code        string      `db:"code"`
	Description null.String `db:"description"`
	TeacherID   string      `db:"teacher_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toSubjectRow(subj subject.Subject) subjectRow {
	return subjectRow{
		ID:          subj.ID,
		Name:        subj.Name,
		Code:        subj.Code,
		Description: null.NewString(subj.Description, subj.Description != ""),
		TeacherID:   subj.TeacherID,
		CreatedAt:   subj.CreatedAt.UTC(),
		UpdatedAt:   subj.UpdatedAt.UTC(),
	}
}

func (r subjectRow) subject() subject.Subject {
	return subject.Subject{
		ID:          r.ID,
		Name:        r.Name,
		Code:        r.Code,
		Description: r.Description.String,
		TeacherID:   r.TeacherID,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func subjectSlice(rows []subjectRow) []subject.Subject {
	subjects := make([]subject.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, r.subject())
	}
	return subjects
}

const subjectColumns = "id, name, code, description, teacher_id, created_at, updated_at"

type subjectRepository struct {
	db *sqlx.DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *sqlx.DB) subject.Repository {
	return &subjectRepository{db: db}
}

func (repo *subjectRepository) CheckCodeUniqueness(ctx context.Context, code string, excludedIDs ...string) error {
	q := `SELECT EXISTS (SELECT 1 FROM subjects WHERE lower(code) = lower(?)`
	args := []interface{}{code}
	if ids := validIDs(excludedIDs); len(ids) > 0 {
		q += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	q += `)`

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking code uniqueness")
	}
	if exists {
		return subject.ErrCodeExists
	}
	return nil
}

func (repo *subjectRepository) CreateSubject(ctx context.Context, subj subject.Subject) (subject.Subject, error) {
	q := `INSERT INTO subjects (` + subjectColumns + `)
		VALUES (:id, :name, :code, :description, :teacher_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toSubjectRow(subj)); err != nil {
		if isUniqueViolation(err) {
			return subject.Subject{}, subject.ErrCodeExists
		}
		return subject.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return subj, nil
}

func (repo *subjectRepository) QuerySubjects(ctx context.Context, filter subject.QueryFilter) ([]subject.Subject, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Name != "" {
		where = append(where, "name ILIKE ?")
		args = append(args, "%"+filter.Name+"%")
	}
	if filter.TeacherID != "" {
		if len(validIDs([]string{filter.TeacherID})) == 0 {
			return []subject.Subject{}, nil
		}
		where = append(where, "teacher_id = ?")
		args = append(args, filter.TeacherID)
	}

	q := `SELECT ` + subjectColumns + ` FROM subjects`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY name, code"

	var rows []subjectRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subjectSlice(rows), nil
}

func (repo *subjectRepository) GetSubjectsByID(ctx context.Context, ids ...string) ([]subject.Subject, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return []subject.Subject{}, nil
	}
	q, args, err := sqlx.In(`SELECT `+subjectColumns+` FROM subjects WHERE id IN (?) ORDER BY name`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []subjectRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "finding subjects")
	}
	return subjectSlice(rows), nil
}

func (repo *subjectRepository) UpdateSubject(ctx context.Context, subj subject.Subject) (subject.Subject, error) {
	q := `UPDATE subjects
		SET name = :name, code = :code, description = :description, teacher_id = :teacher_id, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toSubjectRow(subj))
	if err != nil {
		if isUniqueViolation(err) {
			return subject.Subject{}, subject.ErrCodeExists
		}
		return subject.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return subject.Subject{}, subject.ErrNotFound
	}
	return subj, nil
}

func (repo *subjectRepository) DeleteSubjectsByID(ctx context.Context, ids ...string) (int, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`DELETE FROM subjects WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting subjects")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting subjects")
}
