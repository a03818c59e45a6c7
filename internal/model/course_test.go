package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildCourse() *Course {
	return &Course{
		ID: "c1",
		Modules: []Module{
			{ID: "m1", Lessons: []Lesson{{ID: "l1", Duration: 30}, {ID: "l2", Duration: 15}}},
			{ID: "m-empty"},
			{ID: "m2", Lessons: []Lesson{{ID: "l3", Duration: 45}}},
		},
	}
}

func TestCourseFlattenLessons(t *testing.T) {
	course := buildCourse()
	assert.Equal(t, []string{"l1", "l2", "l3"}, course.FlattenLessons())
	assert.Equal(t, 3, course.TotalLessons())
	assert.Equal(t, 90, course.TotalDuration())

	empty := &Course{ID: "c2"}
	assert.Empty(t, empty.FlattenLessons())
	assert.Equal(t, 0, empty.TotalLessons())
}

func TestCourseNextLesson(t *testing.T) {
	course := buildCourse()

	tests := []struct {
		name     string
		lessonID string
		want     string
	}{
		{name: "middle of module", lessonID: "l1", want: "l2"},
		{name: "crosses module boundary skipping empty module", lessonID: "l2", want: "l3"},
		{name: "last lesson", lessonID: "l3", want: ""},
		{name: "unknown lesson", lessonID: "nope", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, course.NextLesson(tt.lessonID))
		})
	}
}

func TestCourseFindLesson(t *testing.T) {
	course := buildCourse()

	lesson, ok := course.FindLesson("l3")
	assert.True(t, ok)
	assert.Equal(t, 45, lesson.Duration)

	_, ok = course.FindLesson("nope")
	assert.False(t, ok)
}

func TestCourseIsFree(t *testing.T) {
	assert.True(t, (&Course{Price: 0}).IsFree())
	assert.False(t, (&Course{Price: 9.9}).IsFree())
}
