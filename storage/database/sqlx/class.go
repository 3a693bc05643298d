package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/class"
)

type classRow struct {
	ID        string    `db:"id"`
	SubjectID string    `db:"subject_id"`
	TeacherID string    `db:"teacher_id"`
	Name      string    `db:"name"`
	Period    string    `db:"period"`
	Date      string    `db:"date"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r classRow) class() class.Class {
	return class.Class{
		ID:        r.ID,
		SubjectID: r.SubjectID,
		TeacherID: r.TeacherID,
		Name:      r.Name,
		Period:    r.Period,
		Date:      r.Date,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func classSlice(rows []classRow) []class.Class {
	classes := make([]class.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.class())
	}
	return classes
}

// dates are read back as YYYY-MM-DD strings
const classColumns = "id, subject_id, teacher_id, name, period, to_char(date, 'YYYY-MM-DD') AS date, created_at, updated_at"

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	q := `INSERT INTO classes (id, subject_id, teacher_id, name, period, date, created_at, updated_at)
		VALUES (:id, :subject_id, :teacher_id, :name, :period, CAST(:date AS DATE), :created_at, :updated_at)`
	row := classRow{
		ID:        cls.ID,
		SubjectID: cls.SubjectID,
		TeacherID: cls.TeacherID,
		Name:      cls.Name,
		Period:    cls.Period,
		Date:      cls.Date,
		CreatedAt: cls.CreatedAt.UTC(),
		UpdatedAt: cls.UpdatedAt.UTC(),
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo *classRepository) GetClassesByID(ctx context.Context, ids ...string) ([]class.Class, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return []class.Class{}, nil
	}
	q, args, err := sqlx.In(`SELECT `+classColumns+` FROM classes WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []classRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "finding classes")
	}
	return classSlice(rows), nil
}

func (repo *classRepository) QueryClassesByDate(ctx context.Context, date string) ([]class.Class, error) {
	var rows []classRow
	q := `SELECT ` + classColumns + ` FROM classes WHERE date = CAST($1 AS DATE) ORDER BY period, name`
	if err := repo.db.SelectContext(ctx, &rows, q, date); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return classSlice(rows), nil
}
