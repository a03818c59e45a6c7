package model

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// EnrollmentProgress 进度子结构。Progress 始终是
// round(min(100, len(CompletedLessons)/TotalLessons*100)) 的投影，
// 只被重算，从不独立修改。
type EnrollmentProgress struct {
	CompletedLessons []string  `json:"completedLessons"`
	Progress         int       `json:"progress"`
	TotalLessons     int       `json:"totalLessons"`
	CurrentLesson    string    `json:"currentLesson"`
	NextLesson       string    `json:"nextLesson"`
	LastAccessed     time.Time `json:"lastAccessed"`
}

// Enrollment 每 (user, course) 一份的可变进度记录，
// 仅由进度编排器写入。Status 为 completed 当且仅当 Progress.Progress >= 100；
// 一旦 completed 不再回退。
type Enrollment struct {
	ID         string             `json:"id"`
	UserID     string             `json:"userId"`
	CourseID   string             `json:"courseId"`
	Status     EnrollmentStatus   `json:"status"`
	Progress   EnrollmentProgress `json:"progress"`
	EnrolledAt time.Time          `json:"enrolledAt"`
}

// EnrollmentKey 确定性文档键
func EnrollmentKey(userID, courseID string) string {
	return userID + "_" + courseID
}

// NewEnrollment 显式默认构造，写入后不存在缺省字段
func NewEnrollment(userID, courseID string, totalLessons int) *Enrollment {
	return &Enrollment{
		ID:       EnrollmentKey(userID, courseID),
		UserID:   userID,
		CourseID: courseID,
		Status:   EnrollmentActive,
		Progress: EnrollmentProgress{
			CompletedLessons: []string{},
			Progress:         0,
			TotalLessons:     totalLessons,
		},
	}
}

// HasCompleted 判断课时是否在已完成集合中
func (e *Enrollment) HasCompleted(lessonID string) bool {
	for _, id := range e.Progress.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}
