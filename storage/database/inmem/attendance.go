package inmemdb

import (
	"context"

	"github.com/trezcool/rollcall/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) CreateRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rows = append(repo.db.rows, rec)
	return rec, nil
}

// QueryRecords walks the table backwards: rows are appended as they are created.
func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var classIDs map[string]bool
	if len(filter.ClassIDs) > 0 {
		classIDs = make(map[string]bool, len(filter.ClassIDs))
		for _, id := range filter.ClassIDs {
			classIDs[id] = true
		}
	}

	records := make([]attendance.Record, 0)
	for i := len(repo.db.rows) - 1; i >= 0; i-- {
		rec := repo.db.rows[i]
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if classIDs != nil && !classIDs[rec.ClassID] {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
