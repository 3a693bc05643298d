package main

import (
	"log"
	"os"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/subject"
	"github.com/trezcool/rollcall/core/user"
	"github.com/trezcool/rollcall/services/email"
	"github.com/trezcool/rollcall/services/logger"
	"github.com/trezcool/rollcall/storage/database"
	"github.com/trezcool/rollcall/storage/database/sqlx"
)

func main() {
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(stdLogger, conf)

	if conf.Database.InMemory() {
		logger.Fatal("the admin CLI needs a database, database.engine is \"memory\"")
	}

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(err.Error(), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	// set up services
	mailSvc := emailsvc.NewConsoleService(conf)
	subjects := subject.NewService(sqlxrepos.NewSubjectRepository(db))
	classes := class.NewService(sqlxrepos.NewClassRepository(db), subjects)

	// start CLI
	cli := commandLine{
		db:       db,
		accounts: identity.NewService(sqlxrepos.NewAccountRepository(db), mailSvc, conf),
		users:    user.NewService(sqlxrepos.NewUserRepository(db)),
		att:      attendance.NewService(sqlxrepos.NewAttendanceRepository(db), classes, subjects),
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
