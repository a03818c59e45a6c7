package controller

import (
	"errors"
	"strconv"

	"course_market_backend/internal/repository"
	"course_market_backend/internal/service"
	"course_market_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
	AuthService   *service.AuthService
}

func NewCourseController(courseService *service.CourseService, authService *service.AuthService) *CourseController {
	return &CourseController{CourseService: courseService, AuthService: authService}
}

// ListCourses godoc
// @Summary 课程目录
// @Description 浏览已发布课程，支持分类/难度/关键词过滤
// @Tags 课程
// @Produce  json
// @Param   category query string false "分类"
// @Param   level query string false "难度"
// @Param   search query string false "标题或简介关键词"
// @Param   limit query int false "返回条数上限"
// @Success 200 {object} util.Response{data=[]model.Course}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	filter := repository.CourseFilter{
		Category: ctx.Query("category"),
		Level:    ctx.Query("level"),
		Search:   ctx.Query("search"),
		Limit:    limit,
	}

	courses, err := c.CourseService.ListCatalog(ctx.Request.Context(), filter)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// GetCourse godoc
// @Summary 课程详情
// @Description 课程内容树。付费课对未报名用户隐藏课时内容
// @Tags 课程
// @Produce  json
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	course, err := c.CourseService.GetCourse(ctx.Request.Context(), claims, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, course)
}

// CreateCourse godoc
// @Summary 创建课程
// @Description 讲师创建课程草稿，初始为未发布状态
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.CourseInput true "课程内容树"
// @Success 201 {object} util.Response{data=model.Course}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "非讲师"
// @Router /api/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	instructor := c.AuthService.GetCurrentUser(ctx)
	if instructor == nil {
		util.Unauthorized(ctx)
		return
	}

	var input service.CourseInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.CreateCourse(ctx.Request.Context(), instructor, input)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// UpdateCourse godoc
// @Summary 更新课程
// @Description 整体覆盖课程内容树，结构变更对学员进度立即生效
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Param   body body service.CourseInput true "课程内容树"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 403 {object} util.Response "无权限"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var input service.CourseInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.UpdateCourse(ctx.Request.Context(), claims, ctx.Param("id"), input)
	if err != nil {
		c.renderCourseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

type PublishRequest struct {
	Published bool `json:"published"`
}

// SetPublished godoc
// @Summary 发布/下架课程
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Param   body body PublishRequest true "发布状态"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 400 {object} util.Response "空课程无法发布"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/courses/{id}/publish [put]
func (c *CourseController) SetPublished(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.SetPublished(ctx.Request.Context(), claims, ctx.Param("id"), req.Published)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		default:
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Description 仅允许删除无人报名的课程
// @Tags 课程
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response "无权限"
// @Failure 409 {object} util.Response "已有报名"
// @Router /api/courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	err := c.CourseService.DeleteCourse(ctx.Request.Context(), claims, ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		default:
			util.Conflict(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, nil)
}

// ListMyCourses godoc
// @Summary 讲师课程列表
// @Description 当前讲师的全部课程，含未发布草稿
// @Tags 课程
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Course}
// @Router /api/instructor/courses [get]
func (c *CourseController) ListMyCourses(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	courses, err := c.CourseService.ListByInstructor(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// UploadLessonVideo godoc
// @Summary 上传课时视频
// @Description 上传视频文件并回填课时时长与缩略图
// @Tags 课程
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Param   lessonId path string true "课时ID"
// @Param   file formData file true "视频文件"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Failure 400 {object} util.Response "文件格式不支持"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/courses/{id}/lessons/{lessonId}/video [post]
func (c *CourseController) UploadLessonVideo(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少视频文件")
		return
	}

	lesson, err := c.CourseService.UploadLessonVideo(ctx.Request.Context(), claims, ctx.Param("id"), ctx.Param("lessonId"), file)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrInvalidVideoExt):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, lesson)
}

func (c *CourseController) renderCourseError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
