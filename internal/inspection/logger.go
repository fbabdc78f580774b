package inspection

import "github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"

// GetLogger returns the inspection package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("inspection")
}
