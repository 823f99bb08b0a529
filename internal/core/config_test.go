package core

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func TestLoadConfig_DefaultsAndEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("IRCD_RELAY_SERVER_PORT", "7000")
	t.Setenv("IRCD_LOG_LEVEL", "debug")

	// An empty directory: everything comes from defaults and the environment.
	cfg := LoadConfig(t.TempDir())

	defaults := &Config{
		Hostname:       "127.0.0.1",
		ServerName:     "localhost",
		MaxConnections: 100,
		LogLevel:       "debug",
	}
	defaults.RelayServer.Port = 7000
	defaults.Debugging.PprofPort = 4000

	if diff := cmp.Diff(defaults, cfg); diff != "" {
		t.Errorf("LoadConfig() mismatch; diff:\n%s", diff)
	}
}

func TestConfig_RelayAddress(t *testing.T) {
	cfg := &Config{Hostname: "127.0.0.1"}
	cfg.RelayServer.Port = 6667

	addr := cfg.RelayAddress()
	expected := "127.0.0.1:6667"
	if diff := cmp.Diff(expected, addr); diff != "" {
		t.Errorf("RelayAddress() generated the wrong address; diff:\n%s", diff)
	}
}

func TestConfig_IdlePeriod(t *testing.T) {
	cfg := &Config{IdlePeriodSeconds: 90}

	if period := cfg.IdlePeriod(); period != 90*time.Second {
		t.Errorf("IdlePeriod() = %v, want %v", period, 90*time.Second)
	}

	cfg.IdlePeriodSeconds = 0
	if period := cfg.IdlePeriod(); period != 0 {
		t.Errorf("IdlePeriod() = %v, want 0 for disabled idle tracking", period)
	}
}
