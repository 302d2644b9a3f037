package cli

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRootCommandStructure(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()

	if root.Use != "impress" {
		t.Errorf("Use = %q, want impress", root.Use)
	}

	want := map[string]bool{
		"serve":      false,
		"render":     false,
		"seed":       false,
		"cache":      false,
		"completion": false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestSetLogLevel(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	c.SetLogLevel(log.DebugLevel)
	if c.Logger.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", c.Logger.GetLevel())
	}
}

func TestCacheSubcommands(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	cacheCmd := c.cacheCommand()

	names := make(map[string]bool)
	for _, sub := range cacheCmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["clear"] || !names["path"] {
		t.Errorf("cache subcommands = %v, want clear and path", names)
	}
}
