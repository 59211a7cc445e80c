/*
UsU draws one mesh with a rotating and scaling transform. Keys: W/S or +/-
scale, A/D or the arrows turn, R resets, F5 reloads the shader, Escape quits.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/usu/engine"
	"github.com/spaghettifunk/usu/engine/config"
	"github.com/spaghettifunk/usu/engine/core"
)

func main() {
	configPath := flag.String("config", "assets/config.toml", "path to the TOML settings file")
	logLevel := flag.String("log-level", "", "overrides [log] level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("failed to load config: %s", err)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	e, err := engine.New(cfg)
	if err != nil {
		core.LogFatal("failed to create engine: %s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("failed to initialize engine: %s", err)
	}

	// capture sigterm and other system calls; the loop checks ctx between frames
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
