package model

// UserStats 每用户一份的聚合计数。所有字段只通过存储端的原子递增变更，
// 本子系统从不递减、从不对计数器做读改写。
type UserStats struct {
	UserID            string  `json:"userId"`
	CoursesEnrolled   int     `json:"coursesEnrolled"`
	CompletedCourses  int     `json:"completedCourses"`
	HoursLearned      float64 `json:"hoursLearned"`
	Certificates      int     `json:"certificates"`
	Achievements      int     `json:"achievements"`
	ProjectsCompleted int     `json:"projectsCompleted"`
	HackathonsJoined  int     `json:"hackathonsJoined"`

	// 讲师侧聚合
	CoursesCreated    int `json:"coursesCreated"`
	StudentsEnrolled  int `json:"studentsEnrolled"`
	StudentsCompleted int `json:"studentsCompleted"`
}

// 原子递增使用的字段路径
const (
	StatCoursesEnrolled   = "coursesEnrolled"
	StatCompletedCourses  = "completedCourses"
	StatHoursLearned      = "hoursLearned"
	StatCertificates      = "certificates"
	StatAchievements      = "achievements"
	StatProjectsCompleted = "projectsCompleted"
	StatCoursesCreated    = "coursesCreated"
	StatStudentsEnrolled  = "studentsEnrolled"
	StatStudentsCompleted = "studentsCompleted"
)

func NewUserStats(userID string) *UserStats {
	return &UserStats{UserID: userID}
}
