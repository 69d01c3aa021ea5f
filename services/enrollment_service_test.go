package services

import (
	"context"
	"testing"

	"github.com/kodexa-lms/commerce-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollFreeRejectsPaidCourse(t *testing.T) {
	db := newTestDB(t)
	svc := NewEnrollmentService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	student := seedUser(t, db, "student@test.dev", model.RoleStudent)
	paid := seedCourse(t, db, "Go Basics", 49.99, instructor.ID)

	_, err := svc.EnrollFree(context.Background(), student.ID, paid.ID)
	assert.ErrorIs(t, err, ErrCourseNotFree)

	require.NoError(t, db.Model(paid).UpdateColumn("price", 0).Error)
	enrollment, err := svc.EnrollFree(context.Background(), student.ID, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusActive, enrollment.Status)
}

func TestEnrollFreeBumpsCounterOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewEnrollmentService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	student := seedUser(t, db, "student@test.dev", model.RoleStudent)
	free := seedCourse(t, db, "Intro", 0, instructor.ID)

	_, err := svc.EnrollFree(context.Background(), student.ID, free.ID)
	require.NoError(t, err)
	_, err = svc.EnrollFree(context.Background(), student.ID, free.ID)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	var course model.Course
	require.NoError(t, db.First(&course, free.ID).Error)
	assert.Equal(t, 1, course.TotalEnrollments)
}

func TestEnrollFreeUnknownCourse(t *testing.T) {
	db := newTestDB(t)
	svc := NewEnrollmentService(db)
	student := seedUser(t, db, "student@test.dev", model.RoleStudent)

	_, err := svc.EnrollFree(context.Background(), student.ID, 999)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestGrantSkipsPriceCheck(t *testing.T) {
	db := newTestDB(t)
	svc := NewEnrollmentService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	student := seedUser(t, db, "student@test.dev", model.RoleStudent)
	paid := seedCourse(t, db, "Go Basics", 49.99, instructor.ID)

	enrollment, err := svc.Grant(context.Background(), student.ID, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusActive, enrollment.Status)

	_, err = svc.Grant(context.Background(), student.ID, paid.ID)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestCompleteLectureProgress(t *testing.T) {
	db := newTestDB(t)
	svc := NewEnrollmentService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	student := seedUser(t, db, "student@test.dev", model.RoleStudent)
	free := seedCourse(t, db, "Intro", 0, instructor.ID)

	_, err := svc.CompleteLecture(context.Background(), student.ID, free.ID, "l1", 4)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	_, err = svc.EnrollFree(context.Background(), student.ID, free.ID)
	require.NoError(t, err)

	enrollment, err := svc.CompleteLecture(context.Background(), student.ID, free.ID, "l1", 4)
	require.NoError(t, err)
	assert.Equal(t, 25.0, enrollment.Progress)

	// Repeating a lecture changes nothing.
	enrollment, err = svc.CompleteLecture(context.Background(), student.ID, free.ID, "l1", 4)
	require.NoError(t, err)
	assert.Equal(t, 25.0, enrollment.Progress)
	assert.Len(t, enrollment.CompletedLectures, 1)

	enrollment, err = svc.CompleteLecture(context.Background(), student.ID, free.ID, "l2", 4)
	require.NoError(t, err)
	assert.Equal(t, 50.0, enrollment.Progress)

	// A shrunken total must not move progress backwards.
	enrollment, err = svc.CompleteLecture(context.Background(), student.ID, free.ID, "l3", 10)
	require.NoError(t, err)
	assert.Equal(t, 50.0, enrollment.Progress)
	assert.Equal(t, model.EnrollmentStatusActive, enrollment.Status)

	_, err = svc.CompleteLecture(context.Background(), student.ID, free.ID, "l4", 4)
	require.NoError(t, err)
	enrollment, err = svc.CompleteLecture(context.Background(), student.ID, free.ID, "l5", 4)
	require.NoError(t, err)
	assert.Equal(t, 100.0, enrollment.Progress)
	assert.Equal(t, model.EnrollmentStatusCompleted, enrollment.Status)
}

func TestListForUserNewestFirst(t *testing.T) {
	db := newTestDB(t)
	svc := NewEnrollmentService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	student := seedUser(t, db, "student@test.dev", model.RoleStudent)
	a := seedCourse(t, db, "Course A", 0, instructor.ID)
	b := seedCourse(t, db, "Course B", 0, instructor.ID)

	_, err := svc.EnrollFree(context.Background(), student.ID, a.ID)
	require.NoError(t, err)
	_, err = svc.EnrollFree(context.Background(), student.ID, b.ID)
	require.NoError(t, err)

	enrollments, err := svc.ListForUser(context.Background(), student.ID)
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	titles := []string{enrollments[0].Course.Title, enrollments[1].Course.Title}
	assert.ElementsMatch(t, []string{a.Title, b.Title}, titles)
}
