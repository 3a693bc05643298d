package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/rollcall/core/class"
)

type classRepository struct {
	db *classTable
}

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db.class}
}

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) GetClassesByID(_ context.Context, ids ...string) ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]class.Class, 0, len(ids))
	for _, id := range ids {
		if cls, ok := repo.db.table[id]; ok {
			classes = append(classes, *cls)
		}
	}
	return classes, nil
}

func (repo *classRepository) QueryClassesByDate(_ context.Context, date string) ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]class.Class, 0)
	for _, cls := range repo.db.table {
		if cls.Date == date {
			classes = append(classes, *cls)
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Period == classes[j].Period {
			return classes[i].Name < classes[j].Name
		}
		return classes[i].Period < classes[j].Period
	})
	return classes, nil
}
