// Package logging builds the application's zap logger from the `logger`
// configuration section.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/weft-dev/weft/framework/config"
)

// Options is the `logger` config section.
//
//	logger:
//	  level: info        # debug | info | warn | error
//	  encoding: json     # json | console
//	  output: stdout     # stdout | stderr | a file path
type Options struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
	Output   string `yaml:"output"`
}

// New builds a zap logger from cfg.
func New(cfg *config.Config) (*zap.Logger, error) {
	var opts Options
	if err := cfg.Section("logger", &opts); err != nil {
		return nil, err
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if opts.Encoding == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	if opts.Output != "" {
		zc.OutputPaths = []string{opts.Output}
	}
	return zc.Build()
}
