package service

import "math"

// ProgressPercentage 完成课时数对总课时数的百分比投影。
// totalLessons <= 0 时定义为 0，避免除零/NaN 扩散；上限封顶 100。
func ProgressPercentage(completedCount, totalLessons int) int {
	if totalLessons <= 0 {
		return 0
	}
	pct := int(math.Round(float64(completedCount) / float64(totalLessons) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// IsComplete 完成判定
func IsComplete(percentage int) bool {
	return percentage >= 100
}
