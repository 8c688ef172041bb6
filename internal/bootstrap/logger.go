package bootstrap

import (
	"yield_sim/pkg/logging"
)

// InitLogger builds the zap logger from configuration and installs it as the
// global logger.
func InitLogger(cfg *Config, format string) (*logging.ZapLogger, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.System.LogLevel,
		Format: format,
	})
	if err != nil {
		return nil, err
	}

	logging.SetGlobalLogger(logger)
	return logger, nil
}
