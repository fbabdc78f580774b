package observability

import (
	"fmt"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// GetLogger returns the observability package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// promLogger routes promhttp errors to the module logger.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	GetLogger().Error("metrics handler error", logger.String("message", fmt.Sprint(v...)))
}
