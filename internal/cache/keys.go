package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func WeeklyReportKey(userID uuid.UUID) string {
	return fmt.Sprintf("report:weekly:%s", userID)
}

func EntryStatusKey(entryID uuid.UUID) string {
	return fmt.Sprintf("entry:%s", entryID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func DashboardKey(userID uuid.UUID) string {
	return fmt.Sprintf("dashboard:%s", userID)
}
