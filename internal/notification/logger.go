package notification

import "github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"

// GetLogger returns the notification package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}
