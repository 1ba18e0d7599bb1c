package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config controls runtime behavior for the TUI app.
type Config struct {
	BankDir        string `env:"QCM_BANK_DIR"`
	DataDir        string `env:"QCM_DATA_DIR"`
	LogPath        string `env:"QCM_LOG"`
	ASCIIOnly      bool   `env:"QCM_ASCII"`
	DebugLayout    bool   `env:"QCM_DEBUG"`
	Theme          string `env:"QCM_THEME"`
	AdvanceDelayMS int    `env:"QCM_ADVANCE_DELAY_MS"`
	TimerMinutes   int    `env:"QCM_TIMER_MINUTES"`
	Questions      int    `env:"QCM_QUESTIONS"`
}

func DefaultConfig() Config {
	return Config{
		BankDir:        "banks",
		Theme:          "focus_dark",
		AdvanceDelayMS: 1000,
		TimerMinutes:   10,
		Questions:      10,
	}
}

func (c *Config) Validate() error {
	if c.BankDir == "" {
		c.BankDir = "banks"
	}
	switch c.Theme {
	case "", "focus_dark", "warm_paper", "retro_terminal":
	default:
		return fmt.Errorf("invalid theme %q", c.Theme)
	}
	if c.Theme == "" {
		c.Theme = "focus_dark"
	}
	if c.AdvanceDelayMS <= 0 {
		c.AdvanceDelayMS = 1000
	}
	if c.TimerMinutes <= 0 {
		c.TimerMinutes = 10
	}
	if c.Questions <= 0 {
		c.Questions = 10
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.New("cannot resolve user home directory")
		}
		c.DataDir = filepath.Join(home, ".local", "share", "qcm")
	}

	return nil
}
