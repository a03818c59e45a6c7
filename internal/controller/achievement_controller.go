package controller

import (
	"course_market_backend/internal/repository"
	"course_market_backend/internal/service"
	"course_market_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AchievementController struct {
	AchievementRepo *repository.AchievementRepository
	Rules           []service.AchievementRule
}

func NewAchievementController(achievementRepo *repository.AchievementRepository, rules []service.AchievementRule) *AchievementController {
	return &AchievementController{AchievementRepo: achievementRepo, Rules: rules}
}

// ListAchievements godoc
// @Summary 我的成就
// @Tags 成就
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Achievement}
// @Router /api/achievements [get]
func (c *AchievementController) ListAchievements(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	achievements, err := c.AchievementRepo.FindByUser(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, achievements)
}

// AchievementRuleView 规则静态描述，判定函数不出网
type AchievementRuleView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
	XP    int    `json:"xp"`
}

// ListRules godoc
// @Summary 成就规则一览
// @Description 全部可解锁的成就及其奖励
// @Tags 成就
// @Produce  json
// @Success 200 {object} util.Response{data=[]AchievementRuleView}
// @Router /api/achievements/rules [get]
func (c *AchievementController) ListRules(ctx *gin.Context) {
	views := make([]AchievementRuleView, 0, len(c.Rules))
	for _, r := range c.Rules {
		views = append(views, AchievementRuleView{ID: r.ID, Title: r.Title, Icon: r.Icon, XP: r.XP})
	}
	util.Success(ctx, views)
}
