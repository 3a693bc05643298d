// Package dig_container wires the API's dependencies with a dig.Container.
package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/trezcool/rollcall/apps/api/echo"
	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/session"
	"github.com/trezcool/rollcall/core/subject"
	"github.com/trezcool/rollcall/core/user"
	"github.com/trezcool/rollcall/services/alerts"
	"github.com/trezcool/rollcall/services/email"
	"github.com/trezcool/rollcall/services/logger"
	"github.com/trezcool/rollcall/services/metrics"
	"github.com/trezcool/rollcall/storage/cache"
	"github.com/trezcool/rollcall/storage/database"
	"github.com/trezcool/rollcall/storage/database/inmem"
	"github.com/trezcool/rollcall/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are backed by Postgres, or by memory when database.engine is "memory".
// DB is nil in memory.
type Repositories struct {
	dig.Out
	DB         *sqlx.DB
	Accounts   identity.Repository
	Users      user.Repository
	Subjects   subject.Repository
	Classes    class.Repository
	Attendance attendance.Repository
}

// DBParam gets the database, nil in memory.
type DBParam struct {
	dig.In
	DB *sqlx.DB
}

// SessionStores are backed by Redis, or by memory when redis.addr is empty.
type SessionStores struct {
	dig.Out
	Broker   session.Broker
	Denylist session.Denylist
}

type ServerParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Accounts   *identity.Service
	Users      *user.Service
	Subjects   *subject.Service
	Classes    *class.Service
	Attendance *attendance.Service
	Auth       *session.Auth
	Metrics    *metricsvc.Metrics
	DB         *sqlx.DB
	Redis      *redis.Client
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.InMemory() {
		db := inmemdb.Open()
		return Repositories{
			Accounts:   inmemdb.NewAccountRepository(db),
			Users:      inmemdb.NewUserRepository(db),
			Subjects:   inmemdb.NewSubjectRepository(db),
			Classes:    inmemdb.NewClassRepository(db),
			Attendance: inmemdb.NewAttendanceRepository(db),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		DB:         db,
		Accounts:   sqlxrepos.NewAccountRepository(db),
		Users:      sqlxrepos.NewUserRepository(db),
		Subjects:   sqlxrepos.NewSubjectRepository(db),
		Classes:    sqlxrepos.NewClassRepository(db),
		Attendance: sqlxrepos.NewAttendanceRepository(db),
	}
}

// newRedis returns nil when no Redis address is configured.
func newRedis(conf *core.Config) *redis.Client {
	if conf.Redis.Addr == "" {
		return nil
	}
	return rediscache.NewClient(conf)
}

func newSessionStores(client *redis.Client) SessionStores {
	if client == nil {
		return SessionStores{Broker: session.NewMemoryBroker(), Denylist: session.NewMemoryDenylist()}
	}
	return SessionStores{Broker: rediscache.NewBroker(client), Denylist: rediscache.NewDenylist(client)}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	identity.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func newResolver(users *user.Service, logger core.Logger, conf *core.Config) *session.Resolver {
	return session.NewResolver(users, logger, conf.AdminEmails...)
}

func newServer(p ServerParams) *echoapi.Server {
	checks := make(map[string]echoapi.HealthCheck)
	if p.DB != nil {
		checks["database"] = func(ctx context.Context) error { return database.Healthy(ctx, p.DB) }
	}
	if p.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return p.Redis.Ping(ctx).Err() }
	}

	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		Accounts:     p.Accounts,
		Users:        p.Users,
		Subjects:     p.Subjects,
		Classes:      p.Classes,
		Attendance:   p.Attendance,
		Auth:         p.Auth,
		Metrics:      p.Metrics,
		HealthChecks: checks,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newRedis))
	must(c.Provide(newSessionStores))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))

	must(c.Provide(identity.NewService))
	must(c.Provide(user.NewService))
	must(c.Provide(subject.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(newResolver))
	must(c.Provide(session.NewAuth))
	must(c.Provide(metricsvc.New))
	must(c.Provide(alertsvc.NewJob))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
