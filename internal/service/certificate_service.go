package service

import (
	"context"
	"errors"
	"time"

	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/internal/util"
	"course_market_backend/pkg/docstore"
)

// CertificateService 证书查询与公开核验。签发只发生在结课副作用里，
// 这里全是只读路径。
type CertificateService struct {
	CertificateRepo *repository.CertificateRepository
}

func NewCertificateService(certRepo *repository.CertificateRepository) *CertificateService {
	return &CertificateService{CertificateRepo: certRepo}
}

func (s *CertificateService) ListForUser(ctx context.Context, userID string) ([]model.Certificate, error) {
	return s.CertificateRepo.FindByUser(ctx, userID)
}

func (s *CertificateService) GetForCourse(ctx context.Context, userID, courseID string) (*model.Certificate, error) {
	cert, err := s.CertificateRepo.Get(ctx, userID, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrCertificateMissing
	}
	return cert, err
}

// VerificationResult 公开核验响应，不暴露持有人 ID
type VerificationResult struct {
	Valid          bool      `json:"valid"`
	CourseTitle    string    `json:"courseTitle,omitempty"`
	InstructorName string    `json:"instructorName,omitempty"`
	IssuedAt       time.Time `json:"issuedAt,omitempty"`
	Grade          string    `json:"grade,omitempty"`
	Skills         []string  `json:"skills,omitempty"`
}

// Verify 按验证码核验证书真伪，无需登录
func (s *CertificateService) Verify(ctx context.Context, code string) (*VerificationResult, error) {
	cert, err := s.CertificateRepo.FindByVerificationCode(ctx, code)
	if errors.Is(err, docstore.ErrNotFound) {
		return &VerificationResult{Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &VerificationResult{
		Valid:          true,
		CourseTitle:    cert.CourseTitle,
		InstructorName: cert.InstructorName,
		IssuedAt:       cert.IssuedAt,
		Grade:          cert.Metadata.Grade,
		Skills:         cert.Metadata.Skills,
	}, nil
}
