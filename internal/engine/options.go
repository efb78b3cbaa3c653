package engine

import (
	"log/slog"

	"github.com/piwi3910/arcflow/internal/model"
)

// Option configures Build.
type Option func(*buildConfig)

type buildConfig struct {
	logger *slog.Logger
	method int // 0 = use the instance's method
}

func defaultBuildConfig() buildConfig {
	return buildConfig{logger: slog.New(slog.DiscardHandler)}
}

// WithLogger sets the logger used to report build progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *buildConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithoutCompression builds the DP graph only, skipping the final
// compression pass regardless of the instance's method.
func WithoutCompression() Option {
	return func(c *buildConfig) {
		c.method = model.MethodDP
	}
}
