// Package alertsvc emails students whose attendance fell below 75% in some subject.
package alertsvc

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/user"
)

const runTimeout = 10 * time.Minute

type lowAttendanceData struct {
	Name     string
	Subjects []attendance.SubjectSummary
}

// Job sends the low attendance alerts.
type Job struct {
	accounts   *identity.Service
	users      *user.Service
	attendance *attendance.Service
	mailSvc    core.EmailService
	logger     core.Logger
}

func NewJob(
	accounts *identity.Service,
	users *user.Service,
	att *attendance.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) *Job {
	return &Job{accounts: accounts, users: users, attendance: att, mailSvc: mailSvc, logger: logger}
}

// Run alerts every active student with a subject below the excellent tier and returns how
// many were alerted. A student whose account or report fails is logged and skipped.
func (job *Job) Run(ctx context.Context) (int, error) {
	students, err := job.users.Query(ctx, &user.QueryFilter{Roles: []string{user.RoleStudent}}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying students")
	}

	messages := make([]*core.EmailMessage, 0)
	for _, usr := range students {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		acc, err := job.accounts.GetByID(ctx, usr.ID)
		if err != nil {
			if errors.Cause(err) != identity.ErrNotFound {
				job.logger.Error("alertsvc.Job.Run: finding account", err, usr)
			}
			continue
		}
		if !acc.IsActive {
			continue
		}
		report, err := job.attendance.Report(ctx, usr.ID)
		if err != nil {
			job.logger.Error("alertsvc.Job.Run: building report", err, usr)
			continue
		}
		low := report.LowSubjects()
		if len(low) == 0 {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
			Subject:      "Low attendance",
			TemplateName: "low_attendance",
			TemplateData: lowAttendanceData{Name: usr.FullName, Subjects: low},
		})
	}

	if len(messages) > 0 {
		job.mailSvc.SendMessages(messages...)
	}
	return len(messages), nil
}

// Schedule runs job on the cron spec, skipping a run while the previous one is still going.
// The returned Cron is started, callers Stop it on shutdown.
func Schedule(spec string, job *Job, logger core.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		n, err := job.Run(ctx)
		if err != nil {
			logger.Error("alertsvc.Schedule: low attendance alerts", err)
			return
		}
		logger.Info("alertsvc.Schedule: low attendance alerts sent", map[string]interface{}{"count": n})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scheduling %q", spec)
	}
	c.Start()
	return c, nil
}
