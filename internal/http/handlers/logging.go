package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/chromenv/internal/logging"
)

// LogLevelOutput represents the current log level.
type LogLevelOutput struct {
	Body struct {
		Level string `json:"level" enum:"debug,info,warn,error" doc:"Minimum level written"`
	}
}

func logLevelOutput() *LogLevelOutput {
	out := &LogLevelOutput{}
	out.Body.Level = strings.ToLower(logging.GetLevel().String())
	return out
}

// GetLogLevel returns the daemon's log level.
func GetLogLevel(ctx context.Context, input *struct{}) (*LogLevelOutput, error) {
	return logLevelOutput(), nil
}

// SetLogLevelInput changes the log level at runtime.
type SetLogLevelInput struct {
	Body struct {
		Level string `json:"level" enum:"debug,info,warn,error" doc:"Minimum level written"`
	}
}

// SetLogLevel changes the daemon's log level without a restart.
func SetLogLevel(ctx context.Context, input *SetLogLevelInput) (*LogLevelOutput, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(input.Body.Level)); err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid log level: " + input.Body.Level)
	}
	logging.SetLevel(level)
	logging.FromContext(ctx, slog.Default()).Info("log level changed", "level", input.Body.Level)
	return logLevelOutput(), nil
}
