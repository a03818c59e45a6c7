package repository

import (
	"context"
	"strings"

	"course_market_backend/internal/model"
	"course_market_backend/pkg/docstore"
)

type CourseRepository struct {
	Store docstore.Store
}

func NewCourseRepository(store docstore.Store) *CourseRepository {
	return &CourseRepository{Store: store}
}

// CourseFilter 目录查询条件，零值字段不参与过滤
type CourseFilter struct {
	Category      string
	Level         string
	InstructorID  string
	PublishedOnly bool
	Search        string
	Limit         int
}

func (r *CourseRepository) Get(ctx context.Context, courseID string) (*model.Course, error) {
	doc, err := r.Store.Get(ctx, model.CollectionCourses, courseID)
	if err != nil {
		return nil, err
	}
	var c model.Course
	if err := docstore.Decode(doc, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	data, err := docstore.Encode(c)
	if err != nil {
		return err
	}
	data["createdAt"] = docstore.ServerTimestamp
	data["updatedAt"] = docstore.ServerTimestamp
	return r.Store.Create(ctx, model.CollectionCourses, c.ID, data)
}

// Save 整体覆盖课程树。课程树作为单文档写入，模块/课时顺序随之落盘
func (r *CourseRepository) Save(ctx context.Context, c *model.Course) error {
	data, err := docstore.Encode(c)
	if err != nil {
		return err
	}
	data["updatedAt"] = docstore.ServerTimestamp
	return r.Store.Set(ctx, model.CollectionCourses, c.ID, data, false)
}

func (r *CourseRepository) Delete(ctx context.Context, courseID string) error {
	return r.Store.Delete(ctx, model.CollectionCourses, courseID)
}

func (r *CourseRepository) List(ctx context.Context, filter CourseFilter) ([]model.Course, error) {
	var filters []docstore.Filter
	if filter.Category != "" {
		filters = append(filters, docstore.Where("category", "==", filter.Category))
	}
	if filter.Level != "" {
		filters = append(filters, docstore.Where("level", "==", filter.Level))
	}
	if filter.InstructorID != "" {
		filters = append(filters, docstore.Where("instructorId", "==", filter.InstructorID))
	}
	if filter.PublishedOnly {
		filters = append(filters, docstore.Where("published", "==", true))
	}

	opts := []docstore.QueryOption{docstore.OrderBy("createdAt", true)}
	if filter.Limit > 0 && filter.Search == "" {
		opts = append(opts, docstore.Limit(filter.Limit))
	}

	docs, err := r.Store.Query(ctx, model.CollectionCourses, filters, opts...)
	if err != nil {
		return nil, err
	}

	courses := make([]model.Course, 0, len(docs))
	needle := strings.ToLower(filter.Search)
	for i := range docs {
		var c model.Course
		if err := docstore.Decode(&docs[i], &c); err != nil {
			return nil, err
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Title), needle) &&
			!strings.Contains(strings.ToLower(c.Description), needle) {
			continue
		}
		courses = append(courses, c)
		if filter.Limit > 0 && len(courses) >= filter.Limit {
			break
		}
	}
	return courses, nil
}
