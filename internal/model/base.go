package model

import "github.com/google/uuid"

// 文档集合名
const (
	CollectionUsers        = "users"
	CollectionCourses      = "courses"
	CollectionEnrollments  = "enrollments"
	CollectionCertificates = "certificates"
	CollectionUserStats    = "user_stats"
	CollectionAchievements = "achievements"
)

func GenerateUUID() string {
	return uuid.New().String()
}
