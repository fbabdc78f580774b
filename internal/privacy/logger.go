package privacy

import "github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"

// GetLogger returns the privacy package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("privacy")
}
