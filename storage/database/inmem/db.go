package inmemdb

import (
	"sync"

	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/subject"
	"github.com/trezcool/rollcall/core/user"
)

type (
	// DB keeps every table in memory. Used in development and tests.
	DB struct {
		account    *accountTable
		user       *userTable
		subject    *subjectTable
		class      *classTable
		attendance *attendanceTable
	}

	accountTable struct {
		table map[string]*identity.Account
		mutex sync.RWMutex
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	subjectTable struct {
		table map[string]*subject.Subject
		mutex sync.RWMutex
	}

	classTable struct {
		table map[string]*class.Class
		mutex sync.RWMutex
	}

	attendanceTable struct {
		rows  []attendance.Record // insertion order
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		account:    &accountTable{table: make(map[string]*identity.Account)},
		user:       &userTable{table: make(map[string]*user.User)},
		subject:    &subjectTable{table: make(map[string]*subject.Subject)},
		class:      &classTable{table: make(map[string]*class.Class)},
		attendance: &attendanceTable{},
	}
}
