package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/user"
	"github.com/trezcool/rollcall/testutil"
)

func TestService_Mark(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	kid := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	other := env.CreateUser(t, "Other", "other@school.test", user.RoleStudent)
	prof := env.CreateUser(t, "Prof", "prof@school.test", user.RoleTeacher)
	maths := env.CreateSubject(t, "Maths", "MATH101", prof.ID)
	cls := env.CreateClass(t, maths, "Algebra", "08:00", "2024-09-02")

	tests := []struct {
		name       string
		markedBy   user.User
		data       attendance.MarkAttendance
		wantUserID string
		wantErr    error
		wantField  string
	}{
		{
			name:       "self",
			markedBy:   kid,
			data:       attendance.MarkAttendance{ClassID: cls.ID, Status: attendance.StatusPresent},
			wantUserID: kid.ID,
		},
		{
			name:       "explicit self",
			markedBy:   kid,
			data:       attendance.MarkAttendance{UserID: kid.ID, ClassID: cls.ID, Status: attendance.StatusLate},
			wantUserID: kid.ID,
		},
		{
			name:     "student marking someone else",
			markedBy: kid,
			data:     attendance.MarkAttendance{UserID: other.ID, ClassID: cls.ID, Status: attendance.StatusPresent},
			wantErr:  attendance.ErrNotAllowed,
		},
		{
			name:       "teacher marking a student",
			markedBy:   prof,
			data:       attendance.MarkAttendance{UserID: other.ID, ClassID: cls.ID, Status: attendance.StatusAbsent},
			wantUserID: other.ID,
		},
		{
			name:      "unknown class",
			markedBy:  kid,
			data:      attendance.MarkAttendance{ClassID: "0f8fad5b-d9cb-469f-a165-70867728950e", Status: attendance.StatusPresent},
			wantField: "class_id",
		},
		{
			name:      "unknown status",
			markedBy:  kid,
			data:      attendance.MarkAttendance{ClassID: cls.ID, Status: "excused"},
			wantField: "status",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := env.Attendance.Mark(ctx, tt.markedBy, tt.data)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantField != "":
				require.Error(t, err)
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, rec.ID)
				assert.Equal(t, tt.wantUserID, rec.UserID)
				assert.Equal(t, tt.markedBy.ID, rec.MarkedBy)
				assert.Equal(t, tt.data.Status, rec.Status)
			}
		})
	}
}

func TestMarkAttendance_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	ma := attendance.MarkAttendance{ClassID: "0f8fad5b-d9cb-469f-a165-70867728950e", Status: " Present "}
	require.NoError(t, ma.Validate(validate))
	assert.Equal(t, attendance.StatusPresent, ma.Status)

	ma.Status = "excused"
	assert.Error(t, ma.Validate(validate))
	ma = attendance.MarkAttendance{Status: attendance.StatusLate}
	assert.Error(t, ma.Validate(validate))
}

func TestService_ListAndReport(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	kid := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	prof := env.CreateUser(t, "Prof", "prof@school.test", user.RoleTeacher)
	maths := env.CreateSubject(t, "Maths", "MATH101", prof.ID)
	physics := env.CreateSubject(t, "Physics", "PHY101", prof.ID)
	algebra := env.CreateClass(t, maths, "Algebra", "08:00", "2024-09-02")
	optics := env.CreateClass(t, physics, "Optics", "10:00", "2024-09-02")
	doomed := env.CreateClass(t, physics, "Lab", "14:00", "2024-09-03")

	env.MarkAttendance(t, kid, algebra, attendance.StatusPresent)
	env.MarkAttendance(t, kid, optics, attendance.StatusAbsent)
	env.MarkAttendance(t, kid, algebra, attendance.StatusPresent)
	env.MarkAttendance(t, kid, doomed, attendance.StatusLate)
	require.NoError(t, env.Subjects.Delete(ctx, physics.ID))

	entries, err := env.Attendance.ListForUser(ctx, kid.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, doomed.ID, entries[0].ClassID, "newest first")
	require.NotNil(t, entries[0].Class)
	assert.Nil(t, entries[0].Subject)
	assert.Equal(t, attendance.UnknownSubject, entries[0].SubjectName())
	assert.Equal(t, "Maths", entries[1].SubjectName())

	report, err := env.Attendance.Report(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.Stats{Total: 4, Present: 2, Absent: 1, Late: 1, Percentage: 50}, report.Stats)
	require.Len(t, report.Subjects, 2)
	assert.Equal(t, attendance.UnknownSubject, report.Subjects[0].Subject)
	assert.Equal(t, attendance.TierCritical, report.Subjects[0].Tier)
	assert.Equal(t, "Maths", report.Subjects[1].Subject)
	assert.Equal(t, attendance.TierExcellent, report.Subjects[1].Tier)

	empty, err := env.Attendance.Report(ctx, prof.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.Stats{}, empty.Stats)
	assert.Empty(t, empty.Subjects)
}

func TestService_DailyClasses(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	kid := env.CreateUser(t, "Kid", "kid@school.test", user.RoleStudent)
	prof := env.CreateUser(t, "Prof", "prof@school.test", user.RoleTeacher)
	maths := env.CreateSubject(t, "Maths", "MATH101", prof.ID)
	second := env.CreateClass(t, maths, "Geometry", "10:00", "2024-09-02")
	first := env.CreateClass(t, maths, "Algebra", "08:00", "2024-09-02")
	env.CreateClass(t, maths, "Tomorrow", "08:00", "2024-09-03")

	env.MarkAttendance(t, kid, first, attendance.StatusAbsent)
	env.MarkAttendance(t, kid, first, attendance.StatusLate)

	day := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	daily, err := env.Attendance.DailyClasses(ctx, kid.ID, day)
	require.NoError(t, err)
	require.Len(t, daily, 2)

	assert.Equal(t, first.ID, daily[0].ID)
	require.NotNil(t, daily[0].Subject)
	assert.Equal(t, "Maths", daily[0].Subject.Name)
	require.NotNil(t, daily[0].AttendanceStatus)
	assert.Equal(t, attendance.StatusLate, *daily[0].AttendanceStatus, "latest mark wins")

	assert.Equal(t, second.ID, daily[1].ID)
	assert.Nil(t, daily[1].AttendanceStatus)

	none, err := env.Attendance.DailyClasses(ctx, kid.ID, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, none)
}
