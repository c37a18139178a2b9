package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultDirs_ContainAppName(t *testing.T) {
	assert.Contains(t, DefaultConfigDir(), appName)
	assert.Contains(t, DefaultDataDir(), appName)
	assert.True(t, strings.HasSuffix(DefaultConfigPath(), configFileName))
	assert.True(t, strings.HasSuffix(DefaultTokenDir(), tokensDirName))
	assert.True(t, strings.HasSuffix(DefaultHistoryPath(), historyFileName))
}

func TestDefaultDirs_XDG(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("Linux-only test")
	}

	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	assert.Equal(t, filepath.Join("/xdg/config", appName), DefaultConfigDir())
	assert.Equal(t, filepath.Join("/xdg/data", appName), DefaultDataDir())
	assert.Equal(t, filepath.Join("/xdg/data", appName, tokensDirName), DefaultTokenDir())
}

func TestDefaultDirs_LinuxFallback(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("Linux-only test")
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	assert.Equal(t, filepath.Join(home, ".config", appName), DefaultConfigDir())
	assert.Equal(t, filepath.Join(home, ".local", "share", appName), DefaultDataDir())
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	assert.Equal(t, filepath.Join(home, "kb", "h.db"), expandTilde("~/kb/h.db"))
	assert.Equal(t, "/abs/h.db", expandTilde("/abs/h.db"))
	assert.Equal(t, "~user/h.db", expandTilde("~user/h.db"))
}
