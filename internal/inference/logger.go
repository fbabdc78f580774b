package inference

import "github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"

// GetLogger returns the inference package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("inference")
}
