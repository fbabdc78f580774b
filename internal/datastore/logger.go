package datastore

import "github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
