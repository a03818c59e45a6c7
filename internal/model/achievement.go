package model

import "time"

// Achievement 已解锁的成就实例，每 (user, rule) 至多创建一次；
// 创建前的存在性检查使授予幂等。
type Achievement struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	RuleID     string    `json:"ruleId"`
	Title      string    `json:"title"`
	Icon       string    `json:"icon,omitempty"`
	XP         int       `json:"xp"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

func AchievementKey(userID, ruleID string) string {
	return userID + "_" + ruleID
}
