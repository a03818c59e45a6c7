package repository

import (
	"context"

	"course_market_backend/internal/model"
	"course_market_backend/pkg/docstore"
)

type CertificateRepository struct {
	Store docstore.Store
}

func NewCertificateRepository(store docstore.Store) *CertificateRepository {
	return &CertificateRepository{Store: store}
}

func (r *CertificateRepository) Get(ctx context.Context, userID, courseID string) (*model.Certificate, error) {
	doc, err := r.Store.Get(ctx, model.CollectionCertificates, model.CertificateKey(userID, courseID))
	if err != nil {
		return nil, err
	}
	var cert model.Certificate
	if err := docstore.Decode(doc, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// Create 签发证书，签发时间由存储端赋值；重复创建返回 docstore.ErrAlreadyExists
func (r *CertificateRepository) Create(ctx context.Context, cert *model.Certificate) error {
	data, err := docstore.Encode(cert)
	if err != nil {
		return err
	}
	data["issuedAt"] = docstore.ServerTimestamp
	return r.Store.Create(ctx, model.CollectionCertificates, cert.ID, data)
}

func (r *CertificateRepository) FindByUser(ctx context.Context, userID string) ([]model.Certificate, error) {
	docs, err := r.Store.Query(ctx, model.CollectionCertificates,
		[]docstore.Filter{docstore.Where("userId", "==", userID)},
		docstore.OrderBy("issuedAt", true),
	)
	if err != nil {
		return nil, err
	}
	certs := make([]model.Certificate, 0, len(docs))
	for i := range docs {
		var cert model.Certificate
		if err := docstore.Decode(&docs[i], &cert); err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// FindByVerificationCode 公开核验入口按验证码查证书
func (r *CertificateRepository) FindByVerificationCode(ctx context.Context, code string) (*model.Certificate, error) {
	docs, err := r.Store.Query(ctx, model.CollectionCertificates,
		[]docstore.Filter{docstore.Where("verificationCode", "==", code)},
		docstore.Limit(1),
	)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	var cert model.Certificate
	if err := docstore.Decode(&docs[0], &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}
