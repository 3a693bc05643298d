// Package testutil wires in-memory services for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/session"
	"github.com/trezcool/rollcall/core/subject"
	"github.com/trezcool/rollcall/core/user"
	"github.com/trezcool/rollcall/services/email"
	"github.com/trezcool/rollcall/services/logger"
	"github.com/trezcool/rollcall/storage/database/inmem"
)

const (
	AdminEmail = "principal@school.test"
	Password   = "Sch00l-Days!"
)

// Env holds services backed by a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	MailSvc    core.EmailService

	DB         *inmemdb.DB
	Accounts   *identity.Service
	Users      *user.Service
	Subjects   *subject.Service
	Classes    *class.Service
	Attendance *attendance.Service

	Resolver *session.Resolver
	Broker   *session.MemoryBroker
	Denylist *session.MemoryDenylist
	Auth     *session.Auth
}

// Config returns the configuration used by tests.
func Config() *core.Config {
	return &core.Config{
		WorkDir:                   core.Getwd(),
		TestMode:                  true,
		AppName:                   "Rollcall",
		Build:                     "test",
		Env:                       "TEST",
		SecretKey:                 "test-secret-key",
		DefaultFromEmail:          mail.Address{Name: "Rollcall", Address: "noreply@school.test"},
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 24 * time.Hour,
		AdminEmails:               []string{AdminEmail},
		Server: core.ServerConfig{
			Address:                   ":8000",
			Host:                      "localhost",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			ShutdownTimeout:           time.Second,
			DisableReqLogs:            true,
		},
		Database: core.DatabaseConfig{Engine: "memory"},
	}
}

// NewLogger returns a logger that writes nowhere.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), Config())
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	identity.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := Config()
	logger := NewLogger()
	validate, translator := NewValidator()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ClearSentMessages()

	db := inmemdb.Open()
	accounts := identity.NewService(inmemdb.NewAccountRepository(db), mailSvc, conf)
	users := user.NewService(inmemdb.NewUserRepository(db))
	subjects := subject.NewService(inmemdb.NewSubjectRepository(db))
	classes := class.NewService(inmemdb.NewClassRepository(db), subjects)
	att := attendance.NewService(inmemdb.NewAttendanceRepository(db), classes, subjects)

	resolver := session.NewResolver(users, logger, conf.AdminEmails...)
	broker := session.NewMemoryBroker()
	denylist := session.NewMemoryDenylist()

	return &Env{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		MailSvc:    mailSvc,
		DB:         db,
		Accounts:   accounts,
		Users:      users,
		Subjects:   subjects,
		Classes:    classes,
		Attendance: att,
		Resolver:   resolver,
		Broker:     broker,
		Denylist:   denylist,
		Auth:       session.NewAuth(accounts, users, resolver, broker, denylist, logger),
	}
}

// CreateUser creates an active account with Password and its profile.
func (env *Env) CreateUser(t *testing.T, fullName, email, role string) user.User {
	t.Helper()
	ctx := context.Background()

	acc, err := env.Accounts.SaveAccount(ctx, email, Password)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr := user.User{ID: acc.ID, Email: acc.Email, FullName: fullName, Role: role}
	if err = env.Users.SetProfile(ctx, usr); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err = env.Users.GetProfile(ctx, acc.ID)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateSubject(t *testing.T, name, code, teacherID string) subject.Subject {
	t.Helper()
	subj, err := env.Subjects.Create(context.Background(), subject.NewSubject{Name: name, Code: code, TeacherID: teacherID})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return subj
}

// CreateClass schedules a class of subj on date (YYYY-MM-DD).
func (env *Env) CreateClass(t *testing.T, subj subject.Subject, name, period, date string) class.Class {
	t.Helper()
	cls, err := env.Classes.Create(context.Background(), class.NewClass{
		SubjectID: subj.ID,
		Name:      name,
		Period:    period,
		Date:      date,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

// MarkAttendance marks usr on cls, as usr.
func (env *Env) MarkAttendance(t *testing.T, usr user.User, cls class.Class, status attendance.Status) attendance.Record {
	t.Helper()
	rec, err := env.Attendance.Mark(context.Background(), usr, attendance.MarkAttendance{ClassID: cls.ID, Status: status})
	if err != nil {
		t.Fatalf("MarkAttendance() failed: %v", err)
	}
	return rec
}
