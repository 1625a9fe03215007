// Package main is the entry point for the stampcut command.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/hupe1980/stampcut/cmd/stampcut/app"
	"github.com/hupe1980/stampcut/config"
)

// getLogLevel parses STAMPCUT_LOG_LEVEL. Defaults to slog.LevelInfo if unset
// or invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	levelStr := v.GetString("LOG_LEVEL")
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

func main() {
	// Logs go to stderr; stdout carries the summary table.
	level := getLogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := app.NewRootCmd(level).Execute(); err != nil {
		os.Exit(1)
	}
}
