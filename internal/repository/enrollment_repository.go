package repository

import (
	"context"

	"course_market_backend/internal/model"
	"course_market_backend/pkg/docstore"
)

// EnrollmentRepository 报名文档的读写契约。字段级合并写，
// completedLessons 由调用方整体替换而非追加，避免重复计数；
// 任何进度写入都以服务端时间戳覆盖 lastAccessed。
type EnrollmentRepository struct {
	Store docstore.Store
}

func NewEnrollmentRepository(store docstore.Store) *EnrollmentRepository {
	return &EnrollmentRepository{Store: store}
}

// EnrollmentPatch 窄化的部分更新：nil 字段不触碰，CompletedLessons
// 非 nil 时整体替换已完成集合。
type EnrollmentPatch struct {
	Status           *model.EnrollmentStatus
	CompletedLessons []string
	Progress         *int
	TotalLessons     *int
	CurrentLesson    *string
	NextLesson       *string
}

func (r *EnrollmentRepository) Get(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	doc, err := r.Store.Get(ctx, model.CollectionEnrollments, model.EnrollmentKey(userID, courseID))
	if err != nil {
		return nil, err
	}
	var e model.Enrollment
	if err := docstore.Decode(doc, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Create 创建报名文档；并发创建竞争失败方收到 docstore.ErrAlreadyExists
func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) error {
	data, err := docstore.Encode(e)
	if err != nil {
		return err
	}
	data["enrolledAt"] = docstore.ServerTimestamp
	progress, ok := data["progress"].(map[string]interface{})
	if !ok {
		progress = map[string]interface{}{}
		data["progress"] = progress
	}
	progress["lastAccessed"] = docstore.ServerTimestamp
	return r.Store.Create(ctx, model.CollectionEnrollments, e.ID, data)
}

// Patch 字段级合并；文档不存在时返回 docstore.ErrNotFound，调用方需先 Create
func (r *EnrollmentRepository) Patch(ctx context.Context, userID, courseID string, patch EnrollmentPatch) error {
	progress := map[string]interface{}{
		"lastAccessed": docstore.ServerTimestamp,
	}
	if patch.CompletedLessons != nil {
		progress["completedLessons"] = patch.CompletedLessons
	}
	if patch.Progress != nil {
		progress["progress"] = *patch.Progress
	}
	if patch.TotalLessons != nil {
		progress["totalLessons"] = *patch.TotalLessons
	}
	if patch.CurrentLesson != nil {
		progress["currentLesson"] = *patch.CurrentLesson
	}
	if patch.NextLesson != nil {
		progress["nextLesson"] = *patch.NextLesson
	}

	fields := map[string]interface{}{"progress": progress}
	if patch.Status != nil {
		fields["status"] = string(*patch.Status)
	}
	return r.Store.Update(ctx, model.CollectionEnrollments, model.EnrollmentKey(userID, courseID), fields)
}

// FindByUser 按最近访问倒序返回用户的报名记录
func (r *EnrollmentRepository) FindByUser(ctx context.Context, userID string, limit int) ([]model.Enrollment, error) {
	docs, err := r.Store.Query(ctx, model.CollectionEnrollments,
		[]docstore.Filter{docstore.Where("userId", "==", userID)},
		docstore.OrderBy("progress.lastAccessed", true),
		docstore.Limit(limit),
	)
	if err != nil {
		return nil, err
	}
	enrollments := make([]model.Enrollment, 0, len(docs))
	for i := range docs {
		var e model.Enrollment
		if err := docstore.Decode(&docs[i], &e); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, nil
}

// FindByCourse 课程维度的报名列表，讲师分析用
func (r *EnrollmentRepository) FindByCourse(ctx context.Context, courseID string, limit int) ([]model.Enrollment, error) {
	docs, err := r.Store.Query(ctx, model.CollectionEnrollments,
		[]docstore.Filter{docstore.Where("courseId", "==", courseID)},
		docstore.Limit(limit),
	)
	if err != nil {
		return nil, err
	}
	enrollments := make([]model.Enrollment, 0, len(docs))
	for i := range docs {
		var e model.Enrollment
		if err := docstore.Decode(&docs[i], &e); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, nil
}
