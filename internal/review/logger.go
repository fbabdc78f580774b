package review

import "github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"

// GetLogger returns the review package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("review")
}
