package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration settings for the application.
// It includes the environment type, database configuration, the sender
// identity for outgoing email, and the dispatcher pacing settings.
type Config struct {
	Env            string         `env-default:"local" yaml:"env"`             // Env is the current environment: local, dev, prod.
	Database       PostgresConfig `                    yaml:"postgres"`        // Database holds the postgres database configuration
	Email          EmailConfig    `                    yaml:"email"`           // Email holds the sendgrid sender identity
	DispatchDelay  time.Duration  `env-default:"500ms" yaml:"dispatch_delay"`  // DispatchDelay is the pause between two sends of one batch
	MonitoringPort int            `env-default:"9091"  yaml:"monitoring_port"` // MonitoringPort is the /healthz and /metrics listen port
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`                        // Host is the database server address.
	Port     string `yaml:"port"     env-default:"5432"` // Port is the database server port.
	User     string `yaml:"user"`                        // User is the database user.
	Password string `yaml:"password"`                    // Password is the database user's password.
	Name     string `yaml:"db_name"`                     // Name is the name of the database.
}

// EmailConfig holds the sendgrid credentials and sender identity. An empty
// api key leaves the email channel disconnected.
type EmailConfig struct {
	APIKey      string `yaml:"api_key"`
	FromAddress string `yaml:"from_address"`
	FromName    string `yaml:"from_name"`
}

// MustLoad loads the configuration from a YAML file and returns a Config struct.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		panic("config path is empty")
	}

	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		panic("config error: " + err.Error())
	}

	defDispatchDelayMs := 500
	defMonitoringPort := 9091

	viper.SetDefault("postgres.port", "5432")
	viper.SetDefault("dispatch_delay", time.Duration(defDispatchDelayMs*int(time.Millisecond)))
	viper.SetDefault("monitoring_port", defMonitoringPort)
	viper.SetDefault("email.from_name", "Crewmuster")

	return &Config{
		Env:            viper.GetString("env"),
		DispatchDelay:  viper.GetDuration("dispatch_delay"),
		MonitoringPort: viper.GetInt("monitoring_port"),
		Database: PostgresConfig{
			Host:     viper.GetString("postgres.host"),
			Port:     viper.GetString("postgres.port"),
			User:     viper.GetString("postgres.user"),
			Password: viper.GetString("postgres.password"),
			Name:     viper.GetString("postgres.db_name"),
		},
		Email: EmailConfig{
			APIKey:      viper.GetString("email.api_key"),
			FromAddress: viper.GetString("email.from_address"),
			FromName:    viper.GetString("email.from_name"),
		},
	}
}
