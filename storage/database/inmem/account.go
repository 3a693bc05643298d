package inmemdb

import (
	"context"

	"github.com/trezcool/rollcall/core/identity"
)

type accountRepository struct {
	db *accountTable
}

func NewAccountRepository(db *DB) identity.Repository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) emailTaken(email, excludedID string) bool {
	for id, acc := range repo.db.table {
		if acc.Email == email && id != excludedID {
			return true
		}
	}
	return false
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc identity.Account) (identity.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailTaken(acc.Email, "") {
		return identity.Account{}, identity.ErrEmailExists
	}
	repo.db.table[acc.ID] = &acc
	return acc, nil
}

func (repo *accountRepository) GetAccount(_ context.Context, filter identity.GetFilter) (identity.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if acc, ok := repo.db.table[filter.ID]; ok && (filter.Email == "" || acc.Email == filter.Email) {
			return *acc, nil
		}
		return identity.Account{}, identity.ErrNotFound
	}
	if filter.Email != "" {
		for _, acc := range repo.db.table {
			if acc.Email == filter.Email {
				return *acc, nil
			}
		}
	}
	return identity.Account{}, identity.ErrNotFound
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc identity.Account) (identity.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[acc.ID]; !ok {
		return identity.Account{}, identity.ErrNotFound
	}
	if repo.emailTaken(acc.Email, acc.ID) {
		return identity.Account{}, identity.ErrEmailExists
	}
	repo.db.table[acc.ID] = &acc
	return acc, nil
}
