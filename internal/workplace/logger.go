package workplace

import "github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"

// GetLogger returns the workplace package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("workplace")
}
