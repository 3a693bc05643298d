package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/attendance"
)

type recordRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ClassID   string    `db:"class_id"`
	Status    string    `db:"status"`
	MarkedBy  string    `db:"marked_by"`
	MarkedAt  time.Time `db:"marked_at"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toRecordRow(rec attendance.Record) recordRow {
	return recordRow{
		ID:        rec.ID,
		UserID:    rec.UserID,
		ClassID:   rec.ClassID,
		Status:    string(rec.Status),
		MarkedBy:  rec.MarkedBy,
		MarkedAt:  rec.MarkedAt.UTC(),
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
}

func (r recordRow) record() attendance.Record {
	return attendance.Record{
		ID:        r.ID,
		UserID:    r.UserID,
		ClassID:   r.ClassID,
		Status:    attendance.Status(r.Status),
		MarkedBy:  r.MarkedBy,
		MarkedAt:  r.MarkedAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const recordColumns = "id, user_id, class_id, status, marked_by, marked_at, created_at, updated_at"

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := `INSERT INTO attendance_records (` + recordColumns + `)
		VALUES (:id, :user_id, :class_id, :status, :marked_by, :marked_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toRecordRow(rec)); err != nil {
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return rec, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != "" {
		if len(validIDs([]string{filter.UserID})) == 0 {
			return []attendance.Record{}, nil
		}
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.ClassIDs) > 0 {
		ids := validIDs(filter.ClassIDs)
		if len(ids) == 0 {
			return []attendance.Record{}, nil
		}
		where = append(where, "class_id IN (?)")
		args = append(args, ids)
	}

	q := `SELECT ` + recordColumns + ` FROM attendance_records`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, seq DESC"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []recordRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}
