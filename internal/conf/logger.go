package conf

import "github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"

// GetLogger returns the config package logger.
// It is fetched from the global logger each time because the central logger
// is replaced after configuration has been loaded.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
