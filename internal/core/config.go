package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the relay
// server components.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Name the server identifies itself as in reply prefixes.
	ServerName string `mapstructure:"server_name"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`
	// Number of seconds a connection may go without sending a complete line
	// before it is disconnected. Zero disables idle disconnection.
	IdlePeriodSeconds int `mapstructure:"idle_period_seconds"`
	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	RelayServer struct {
		// Port on which the relay server will listen.
		Port int `mapstructure:"port"`
	} `mapstructure:"relay_server"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log every parsed line to stdout.
		LineLoggingEnabled bool `mapstructure:"line_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "IRCD"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Printf("error reading config file: %v\n", err)
			os.Exit(1)
		}
		// Missing config file is fine; the defaults describe a working server.
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, relay_server.port can be set using: <envVarPrefix>_RELAY_SERVER_PORT
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s\n", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v\n", err)
		os.Exit(1)
	}
	return config
}

func setDefaults() {
	viper.SetDefault("hostname", "127.0.0.1")
	viper.SetDefault("server_name", "localhost")
	viper.SetDefault("max_connections", 100)
	viper.SetDefault("idle_period_seconds", 0)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("relay_server.port", 6667)
	viper.SetDefault("debugging.pprof_port", 4000)
}

// RelayAddress returns the full address on which the relay server listens.
func (c *Config) RelayAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.RelayServer.Port)
}

// IdlePeriod returns the configured idle disconnection window as a Duration.
func (c *Config) IdlePeriod() time.Duration {
	return time.Duration(c.IdlePeriodSeconds) * time.Second
}
