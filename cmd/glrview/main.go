// glrview plays rig animations in an OpenGL window.
//
// Controls: space pauses, N or Tab cycles clips, left/right step a tenth of
// a second, L toggles looping, R restarts, F12 saves a screenshot, drag
// orbits, wheel zooms, Esc quits.
package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/config"
	"github.com/Faultbox/glr/internal/logger"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== glr viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if cfg.Device.Backend != config.BackendGL {
		logger.Error("the viewer draws through OpenGL; use posedump for the memory backend",
			zap.String("backend", cfg.Device.Backend))
		os.Exit(1)
	}

	v, err := newViewer(cfg)
	if err != nil {
		logger.Error("failed to start viewer", zap.Error(err))
		os.Exit(1)
	}
	defer v.Close()

	if err := v.Run(); err != nil && !errors.Is(err, errQuit) {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("viewer closed normally")
}
