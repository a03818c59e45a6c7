package model

import "time"

type CertificateMetadata struct {
	Grade  string   `json:"grade"`
	Skills []string `json:"skills,omitempty"`
}

// Certificate 结业证书，每 (user, course) 至多一份，签发后不可变。
// 标题与讲师是签发时刻的快照，课程后续改名不回溯。
type Certificate struct {
	ID               string              `json:"id"`
	UserID           string              `json:"userId"`
	CourseID         string              `json:"courseId"`
	CourseTitle      string              `json:"courseTitle"`
	InstructorID     string              `json:"instructorId"`
	InstructorName   string              `json:"instructorName"`
	IssuedAt         time.Time           `json:"issuedAt"`
	VerificationCode string              `json:"verificationCode"`
	Metadata         CertificateMetadata `json:"metadata"`
}

func CertificateKey(userID, courseID string) string {
	return userID + "_" + courseID
}

func NewCertificate(userID string, course *Course) *Certificate {
	return &Certificate{
		ID:               CertificateKey(userID, course.ID),
		UserID:           userID,
		CourseID:         course.ID,
		CourseTitle:      course.Title,
		InstructorID:     course.InstructorID,
		InstructorName:   course.InstructorName,
		VerificationCode: GenerateUUID(),
		Metadata: CertificateMetadata{
			Grade:  "pass",
			Skills: course.Skills,
		},
	}
}
