package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/rollcall/core/subject"
)

type subjectRepository struct {
	db *subjectTable
}

func NewSubjectRepository(db *DB) subject.Repository {
	return &subjectRepository{db: db.subject}
}

func (repo *subjectRepository) codeTaken(code string, excludedIDs ...string) bool {
	for id, subj := range repo.db.table {
		if !strings.EqualFold(subj.Code, code) {
			continue
		}
		excluded := false
		for _, ex := range excludedIDs {
			if id == ex {
				excluded = true
				break
			}
		}
		if !excluded {
			return true
		}
	}
	return false
}

func (repo *subjectRepository) CheckCodeUniqueness(_ context.Context, code string, excludedIDs ...string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.codeTaken(code, excludedIDs...) {
		return subject.ErrCodeExists
	}
	return nil
}

func (repo *subjectRepository) CreateSubject(_ context.Context, subj subject.Subject) (subject.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.codeTaken(subj.Code) {
		return subject.Subject{}, subject.ErrCodeExists
	}
	repo.db.table[subj.ID] = &subj
	return subj, nil
}

func (repo *subjectRepository) QuerySubjects(_ context.Context, filter subject.QueryFilter) ([]subject.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	name := strings.ToLower(filter.Name)
	subjects := make([]subject.Subject, 0, len(repo.db.table))
	for _, subj := range repo.db.table {
		if name != "" && !strings.Contains(strings.ToLower(subj.Name), name) {
			continue
		}
		if filter.TeacherID != "" && subj.TeacherID != filter.TeacherID {
			continue
		}
		subjects = append(subjects, *subj)
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].Name == subjects[j].Name {
			return subjects[i].Code < subjects[j].Code
		}
		return subjects[i].Name < subjects[j].Name
	})
	return subjects, nil
}

func (repo *subjectRepository) GetSubjectsByID(_ context.Context, ids ...string) ([]subject.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]subject.Subject, 0, len(ids))
	for _, id := range ids {
		if subj, ok := repo.db.table[id]; ok {
			subjects = append(subjects, *subj)
		}
	}
	return subjects, nil
}

func (repo *subjectRepository) UpdateSubject(_ context.Context, subj subject.Subject) (subject.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[subj.ID]; !ok {
		return subject.Subject{}, subject.ErrNotFound
	}
	if repo.codeTaken(subj.Code, subj.ID) {
		return subject.Subject{}, subject.ErrCodeExists
	}
	repo.db.table[subj.ID] = &subj
	return subj, nil
}

func (repo *subjectRepository) DeleteSubjectsByID(_ context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
