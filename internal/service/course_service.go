package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"course_market_backend/internal/config"
	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/internal/util"
	"course_market_backend/pkg/docstore"
	"course_market_backend/pkg/logger"

	"go.uber.org/zap"
)

// CourseService 课程创作与目录。课程树整体保存，结构变更对进度引擎
// 立即可见（进度按当前结构计算，历史完成记录不回溯修正）。
type CourseService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	StatsRepo      *repository.StatsRepository
	Storage        *StorageService
	Cfg            *config.Config
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	statsRepo *repository.StatsRepository,
	storage *StorageService,
	cfg *config.Config,
) *CourseService {
	return &CourseService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		StatsRepo:      statsRepo,
		Storage:        storage,
		Cfg:            cfg,
	}
}

// LessonInput / ModuleInput / CourseInput 创作端请求体
type LessonInput struct {
	ID       string              `json:"id"`
	Title    string              `json:"title" binding:"required"`
	Type     model.LessonType    `json:"type" binding:"required"`
	Duration int                 `json:"duration"`
	Content  model.LessonContent `json:"content"`
}

type ModuleInput struct {
	ID      string        `json:"id"`
	Title   string        `json:"title" binding:"required"`
	Lessons []LessonInput `json:"lessons"`
}

type CourseInput struct {
	Title       string        `json:"title" binding:"required"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Level       string        `json:"level"`
	Price       float64       `json:"price"`
	Skills      []string      `json:"skills"`
	Modules     []ModuleInput `json:"modules"`
}

func buildModules(inputs []ModuleInput) []model.Module {
	modules := make([]model.Module, 0, len(inputs))
	for _, mi := range inputs {
		m := model.Module{ID: mi.ID, Title: mi.Title}
		if m.ID == "" {
			m.ID = model.GenerateUUID()
		}
		m.Lessons = make([]model.Lesson, 0, len(mi.Lessons))
		for _, li := range mi.Lessons {
			l := model.Lesson{
				ID:       li.ID,
				Title:    li.Title,
				Type:     li.Type,
				Duration: li.Duration,
				Content:  li.Content,
			}
			if l.ID == "" {
				l.ID = model.GenerateUUID()
			}
			m.Lessons = append(m.Lessons, l)
		}
		modules = append(modules, m)
	}
	return modules
}

func (s *CourseService) CreateCourse(ctx context.Context, instructor *model.User, input CourseInput) (*model.Course, error) {
	course := &model.Course{
		ID:             model.GenerateUUID(),
		Title:          input.Title,
		Description:    input.Description,
		InstructorID:   instructor.ID,
		InstructorName: instructor.Name,
		Category:       input.Category,
		Level:          input.Level,
		Price:          input.Price,
		Skills:         input.Skills,
		Published:      false,
		Modules:        buildModules(input.Modules),
	}
	if err := s.CourseRepo.Create(ctx, course); err != nil {
		return nil, err
	}
	if err := s.StatsRepo.Increment(ctx, instructor.ID, model.StatCoursesCreated, 1); err != nil {
		return nil, err
	}
	return course, nil
}

// canManage 讲师只能管理自己的课程，管理员不受限
func canManage(course *model.Course, claims *util.Claims) bool {
	if claims == nil {
		return false
	}
	return claims.Role == model.Admin || course.InstructorID == claims.UserID
}

func (s *CourseService) UpdateCourse(ctx context.Context, claims *util.Claims, courseID string, input CourseInput) (*model.Course, error) {
	course, err := s.CourseRepo.Get(ctx, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canManage(course, claims) {
		return nil, util.ErrPermissionDenied
	}

	course.Title = input.Title
	course.Description = input.Description
	course.Category = input.Category
	course.Level = input.Level
	course.Price = input.Price
	course.Skills = input.Skills
	course.Modules = buildModules(input.Modules)

	if err := s.CourseRepo.Save(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) SetPublished(ctx context.Context, claims *util.Claims, courseID string, published bool) (*model.Course, error) {
	course, err := s.CourseRepo.Get(ctx, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canManage(course, claims) {
		return nil, util.ErrPermissionDenied
	}
	if published && course.TotalLessons() == 0 {
		return nil, errors.New("课程没有任何课时，无法发布")
	}

	course.Published = published
	if err := s.CourseRepo.Save(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) DeleteCourse(ctx context.Context, claims *util.Claims, courseID string) error {
	course, err := s.CourseRepo.Get(ctx, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return util.ErrCourseNotFound
	}
	if err != nil {
		return err
	}
	if !canManage(course, claims) {
		return util.ErrPermissionDenied
	}

	enrollments, err := s.EnrollmentRepo.FindByCourse(ctx, courseID, 1)
	if err != nil {
		return err
	}
	if len(enrollments) > 0 {
		return errors.New("课程已有学员报名，无法删除")
	}
	return s.CourseRepo.Delete(ctx, courseID)
}

// GetCourse 课程详情。未发布课程只有讲师本人和管理员可见；
// 付费课对未报名用户隐藏课时内容，只保留标题、类型与时长用于大纲展示。
func (s *CourseService) GetCourse(ctx context.Context, claims *util.Claims, courseID string) (*model.Course, error) {
	course, err := s.CourseRepo.Get(ctx, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !course.Published && !canManage(course, claims) {
		return nil, util.ErrCourseNotFound
	}
	if canManage(course, claims) || course.IsFree() {
		return course, nil
	}

	enrolled := false
	if claims != nil {
		_, err := s.EnrollmentRepo.Get(ctx, claims.UserID, courseID)
		if err == nil {
			enrolled = true
		} else if !errors.Is(err, docstore.ErrNotFound) {
			return nil, err
		}
	}
	if !enrolled {
		stripped := *course
		stripped.Modules = make([]model.Module, len(course.Modules))
		for mi, m := range course.Modules {
			sm := model.Module{ID: m.ID, Title: m.Title, Lessons: make([]model.Lesson, len(m.Lessons))}
			for li, l := range m.Lessons {
				sm.Lessons[li] = model.Lesson{ID: l.ID, Title: l.Title, Type: l.Type, Duration: l.Duration}
			}
			stripped.Modules[mi] = sm
		}
		return &stripped, nil
	}
	return course, nil
}

// ListCatalog 公开目录，只含已发布课程
func (s *CourseService) ListCatalog(ctx context.Context, filter repository.CourseFilter) ([]model.Course, error) {
	filter.PublishedOnly = true
	return s.CourseRepo.List(ctx, filter)
}

// ListByInstructor 讲师后台的课程列表，含未发布
func (s *CourseService) ListByInstructor(ctx context.Context, instructorID string) ([]model.Course, error) {
	return s.CourseRepo.List(ctx, repository.CourseFilter{InstructorID: instructorID})
}

// UploadLessonVideo 上传课时视频：落临时盘、ffprobe 取时长、抓帧缩略图、
// 推存储后端，最后把拿到的 URL 与时长写回课程树。
func (s *CourseService) UploadLessonVideo(ctx context.Context, claims *util.Claims, courseID, lessonID string, file *multipart.FileHeader) (*model.Lesson, error) {
	course, err := s.CourseRepo.Get(ctx, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canManage(course, claims) {
		return nil, util.ErrPermissionDenied
	}
	lesson, ok := course.FindLesson(lessonID)
	if !ok {
		return nil, util.ErrLessonNotFound
	}
	if lesson.Type != model.LessonVideo {
		return nil, errors.New("该课时不是视频类型")
	}

	// 验证文件扩展名
	ext := strings.ToLower(filepath.Ext(file.Filename))
	isValidType := false
	for _, e := range util.AllowedVideoExtensions {
		if ext == e {
			isValidType = true
			break
		}
	}
	if !isValidType {
		return nil, util.ErrInvalidVideoExt
	}

	// 临时保存到本地进行处理
	tempDir := filepath.Join(s.Cfg.Storage.LocalPath, "temp")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, err
	}
	videoPath := filepath.Join(tempDir, fmt.Sprintf("lesson_video_%d%s", time.Now().UnixNano(), ext))
	defer os.Remove(videoPath)

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	// 深度验证 MIME 类型
	if _, err := util.ValidateMimeType(src, []string{util.MimeVideo}); err != nil {
		return nil, fmt.Errorf("非法的文件内容，仅允许视频格式: %v", err)
	}
	if seeker, ok := src.(io.Seeker); ok {
		seeker.Seek(0, io.SeekStart)
	}

	dst, err := os.Create(videoPath)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return nil, err
	}
	dst.Close()

	objectName := fmt.Sprintf("courses/%s/lessons/%s/%s%s",
		courseID, lessonID, util.GenerateRandomString(8), ext)
	videoURL, err := s.Storage.UploadFile(ctx, objectName, videoPath, file.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	// 生成缩略图，失败不阻塞上传
	thumbnailObject := fmt.Sprintf("courses/%s/lessons/%s/thumbnail.jpg", courseID, lessonID)
	thumbnailPath := filepath.Join(tempDir, fmt.Sprintf("lesson_thumb_%d.jpg", time.Now().UnixNano()))
	defer os.Remove(thumbnailPath)

	var thumbnailURL string
	if err := util.GenerateThumbnail(videoPath, thumbnailPath, "3"); err != nil {
		logger.Log.Error("生成缩略图失败", zap.Error(err), zap.String("lessonId", lessonID))
	} else {
		thumbnailURL, err = s.Storage.UploadFile(ctx, thumbnailObject, thumbnailPath, "image/jpeg")
		if err != nil {
			logger.Log.Error("上传缩略图失败", zap.Error(err))
			thumbnailURL = ""
		}
	}

	lesson.Content.VideoURL = videoURL
	lesson.Content.ThumbnailURL = thumbnailURL
	if info, err := util.GetVideoInfo(videoPath); err == nil && info.Duration > 0 {
		// 时长向上取整到分钟
		lesson.Duration = int(math.Ceil(info.Duration / 60))
	}

	if err := s.CourseRepo.Save(ctx, course); err != nil {
		return nil, err
	}
	return lesson, nil
}
