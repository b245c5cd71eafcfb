package utils

// XPPerLevel is how much XP a user needs to advance one level.
const XPPerLevel = 1000

// LevelForXP maps lifetime XP to a display level, starting at level 1.
func LevelForXP(totalXP int) int {
	if totalXP < 0 {
		return 1
	}
	return totalXP/XPPerLevel + 1
}
