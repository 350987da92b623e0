/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */
package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ATM service. These
// values are loaded from environment variables.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	StorageDriver          string `mapstructure:"STORAGE_DRIVER"`
	DataDir                string `mapstructure:"DATA_DIR"`
	AccountsFile           string `mapstructure:"ACCOUNTS_FILE"`
	TransactionsFile       string `mapstructure:"TRANSACTIONS_FILE"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	SessionTokenSecret     string `mapstructure:"SESSION_TOKEN_SECRET"`
	SessionTokenTTLMinutes int    `mapstructure:"SESSION_TOKEN_TTL_MINUTES"`
	MaxFailedLoginAttempts int    `mapstructure:"MAX_FAILED_LOGIN_ATTEMPTS"`
	TemporaryLockMinutes   int    `mapstructure:"TEMPORARY_LOCK_MINUTES"`
	SeedDemoAccounts       bool   `mapstructure:"SEED_DEMO_ACCOUNTS"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STORAGE_DRIVER", "json")
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("ACCOUNTS_FILE", "accounts.json")
	viper.SetDefault("TRANSACTIONS_FILE", "transactions.json")
	viper.SetDefault("SESSION_TOKEN_TTL_MINUTES", 30)
	viper.SetDefault("MAX_FAILED_LOGIN_ATTEMPTS", 5)
	viper.SetDefault("TEMPORARY_LOCK_MINUTES", 30)
	viper.SetDefault("SEED_DEMO_ACCOUNTS", true)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("STORAGE_DRIVER")
	_ = viper.BindEnv("DATA_DIR")
	_ = viper.BindEnv("ACCOUNTS_FILE")
	_ = viper.BindEnv("TRANSACTIONS_FILE")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("SESSION_TOKEN_SECRET")
	_ = viper.BindEnv("SESSION_TOKEN_TTL_MINUTES")
	_ = viper.BindEnv("MAX_FAILED_LOGIN_ATTEMPTS")
	_ = viper.BindEnv("TEMPORARY_LOCK_MINUTES")
	_ = viper.BindEnv("SEED_DEMO_ACCOUNTS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.StorageDriver = strings.ToLower(strings.TrimSpace(config.StorageDriver))
	if config.StorageDriver == "" {
		config.StorageDriver = "json"
	}
	if config.SessionTokenTTLMinutes <= 0 {
		config.SessionTokenTTLMinutes = 30
	}
	if config.MaxFailedLoginAttempts <= 0 {
		config.MaxFailedLoginAttempts = 5
	}
	if config.TemporaryLockMinutes <= 0 {
		config.TemporaryLockMinutes = 30
	}
	return
}

// AccountsPath returns the path of the accounts snapshot file.
func (c Config) AccountsPath() string {
	return filepath.Join(c.DataDir, c.AccountsFile)
}

// TransactionsPath returns the path of the transaction snapshot file.
func (c Config) TransactionsPath() string {
	return filepath.Join(c.DataDir, c.TransactionsFile)
}
