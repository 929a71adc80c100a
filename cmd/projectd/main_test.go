package main

import (
	"testing"

	"github.com/rs/zerolog"

	"projectd/internal/config"
)

func TestMergeConfigFlagPrecedence(t *testing.T) {
	file := config.Config{Addr: ":7000", ProjectsDir: "/srv/projects", LogLevel: "debug"}
	flags := config.Config{Addr: ":8050", ProjectsDir: "frontend_projects", LogLevel: "info", WatchProjects: true}

	// nothing set on the command line: file values win
	got := mergeConfig(file, flags, map[string]bool{})
	if got.Addr != ":7000" || got.ProjectsDir != "/srv/projects" || got.LogLevel != "debug" {
		t.Fatalf("file values lost: %+v", got)
	}
	if got.WatchProjects {
		t.Fatalf("watch enabled without being set: %+v", got)
	}

	// explicitly set flags override the file
	got = mergeConfig(file, flags, map[string]bool{"addr": true, "watch": true})
	if got.Addr != ":8050" || got.ProjectsDir != "/srv/projects" {
		t.Fatalf("flag precedence wrong: %+v", got)
	}
	if !got.WatchProjects {
		t.Fatalf("explicit watch flag lost: %+v", got)
	}

	// flag defaults fill fields the file leaves empty
	got = mergeConfig(config.Config{}, flags, map[string]bool{})
	if got.Addr != ":8050" || got.LogLevel != "info" {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	if lvl := newLogger("debug").GetLevel(); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %s", lvl)
	}
	if lvl := newLogger("nonsense").GetLevel(); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", lvl)
	}
}
