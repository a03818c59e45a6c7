package controller

import (
	"errors"

	"course_market_backend/internal/service"
	"course_market_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// LearningController 学习路径：报名、课时打卡、进度与访问查询
type LearningController struct {
	ProgressService *service.ProgressService
}

func NewLearningController(progressService *service.ProgressService) *LearningController {
	return &LearningController{ProgressService: progressService}
}

type LessonCompletionRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// CompleteLesson godoc
// @Summary 课时完成打卡
// @Description 标记或取消标记课时完成，进度、指针、状态在单次写入中一并更新；
// @Description 首次打卡自动建立报名；全部课时完成后触发发证等结课流程
// @Tags 学习
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Param   lessonId path string true "课时ID"
// @Param   body body LessonCompletionRequest true "完成标记"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 503 {object} util.Response "存储暂不可用"
// @Router /api/learning/courses/{id}/lessons/{lessonId}/complete [post]
func (c *LearningController) CompleteLesson(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req LessonCompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.ProgressService.RecordLessonCompletion(
		ctx.Request.Context(), claims.UserID, ctx.Param("id"), ctx.Param("lessonId"), *req.Completed)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}

// Enroll godoc
// @Summary 报名课程
// @Description 显式报名已发布课程，重复报名返回现有记录
// @Tags 学习
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 409 {object} util.Response "课程未发布"
// @Router /api/learning/courses/{id}/enroll [post]
func (c *LearningController) Enroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	enrollment, err := c.ProgressService.Enroll(ctx.Request.Context(), claims.UserID, ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrCourseNotPublished):
			util.Conflict(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, enrollment)
}

// GetEnrollmentStatus godoc
// @Summary 报名状态
// @Description 课程页顶栏投影：是否报名、进度、当前/下一课时、证书是否已发
// @Tags 学习
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=service.EnrollmentStatusView}
// @Router /api/learning/courses/{id}/status [get]
func (c *LearningController) GetEnrollmentStatus(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.ProgressService.GetEnrollmentStatus(ctx.Request.Context(), claims.UserID, ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// GetCourseProgress godoc
// @Summary 课程进度百分比
// @Description 未报名返回 0
// @Tags 学习
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/learning/courses/{id}/progress [get]
func (c *LearningController) GetCourseProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.ProgressService.GetCourseProgress(ctx.Request.Context(), claims.UserID, ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"progress": progress})
}

// CheckAccess godoc
// @Summary 课程访问检查
// @Description 已报名放行；免费已发布课程首次访问自动报名
// @Tags 学习
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=service.AccessStatus}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/learning/courses/{id}/access [get]
func (c *LearningController) CheckAccess(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	status, err := c.ProgressService.CheckAccessStatus(ctx.Request.Context(), claims.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, status)
}
