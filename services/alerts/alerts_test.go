package alertsvc_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/user"
	"github.com/trezcool/rollcall/services/alerts"
	"github.com/trezcool/rollcall/services/email"
	"github.com/trezcool/rollcall/testutil"
)

func TestJob_Run(t *testing.T) {
	env := testutil.NewEnv(t)
	teacher := env.CreateUser(t, "Mrs Smith", "smith@school.test", user.RoleTeacher)
	good := env.CreateUser(t, "Good Kid", "good@school.test", user.RoleStudent)
	truant := env.CreateUser(t, "Truant Kid", "truant@school.test", user.RoleStudent)
	gone := env.CreateUser(t, "Gone Kid", "gone@school.test", user.RoleStudent)
	require.NoError(t, env.Accounts.SetActive(context.Background(), gone.ID, false))

	math := env.CreateSubject(t, "Mathematics", "MATH101", teacher.ID)
	art := env.CreateSubject(t, "Art", "ART101", teacher.ID)
	for i, date := range []string{"2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07"} {
		mathCls := env.CreateClass(t, math, "Algebra", "1", date)
		artCls := env.CreateClass(t, art, "Drawing", "2", date)
		env.MarkAttendance(t, good, mathCls, attendance.StatusPresent)
		env.MarkAttendance(t, good, artCls, attendance.StatusPresent)

		status := attendance.StatusAbsent
		if i == 0 {
			status = attendance.StatusPresent
		}
		env.MarkAttendance(t, truant, mathCls, status)
		env.MarkAttendance(t, truant, artCls, attendance.StatusPresent)
		env.MarkAttendance(t, gone, mathCls, attendance.StatusAbsent)
	}

	job := alertsvc.NewJob(env.Accounts, env.Users, env.Attendance, env.MailSvc, env.Logger)
	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sent := emailsvc.SentMessages
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "truant@school.test", msg.To[0].Address, "inactive accounts are not alerted")
	assert.Contains(t, msg.TextContent, "Hi Truant Kid")
	assert.Contains(t, msg.TextContent, "Mathematics: 25% (1/4 present). You need to attend 10 more classes to reach 75%.")
	assert.False(t, strings.Contains(msg.TextContent, "Art:"), "excellent subjects are not listed")
}

func TestSchedule(t *testing.T) {
	env := testutil.NewEnv(t)
	job := alertsvc.NewJob(env.Accounts, env.Users, env.Attendance, env.MailSvc, env.Logger)

	_, err := alertsvc.Schedule("not a cron spec", job, env.Logger)
	assert.Error(t, err)

	c, err := alertsvc.Schedule("@daily", job, env.Logger)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}
