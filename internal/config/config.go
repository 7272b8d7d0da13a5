/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	ImportEventQueue      string `mapstructure:"IMPORT_EVENT_QUEUE"`
	AutoPostImports       bool   `mapstructure:"AUTO_POST_IMPORTS"`
	DefaultExpenseAccount string `mapstructure:"DEFAULT_EXPENSE_ACCOUNT"`
	DefaultIncomeAccount  string `mapstructure:"DEFAULT_INCOME_ACCOUNT"`
	DefaultCurrency       string `mapstructure:"DEFAULT_CURRENCY"`
	ImportBatchMaxItems   int    `mapstructure:"IMPORT_BATCH_MAX_ITEMS"`
	RequestTimeoutSeconds int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
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
	viper.SetDefault("IMPORT_EVENT_QUEUE", "ledger_service.import_updates")
	viper.SetDefault("AUTO_POST_IMPORTS", false)
	viper.SetDefault("DEFAULT_EXPENSE_ACCOUNT", "5999")
	viper.SetDefault("DEFAULT_INCOME_ACCOUNT", "4999")
	viper.SetDefault("DEFAULT_CURRENCY", "EUR")
	viper.SetDefault("IMPORT_BATCH_MAX_ITEMS", 1000)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("IMPORT_EVENT_QUEUE")
	_ = viper.BindEnv("AUTO_POST_IMPORTS")
	_ = viper.BindEnv("DEFAULT_EXPENSE_ACCOUNT")
	_ = viper.BindEnv("DEFAULT_INCOME_ACCOUNT")
	_ = viper.BindEnv("DEFAULT_CURRENCY")
	_ = viper.BindEnv("IMPORT_BATCH_MAX_ITEMS")
	_ = viper.BindEnv("REQUEST_TIMEOUT_SECONDS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
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

	config.DefaultCurrency = strings.ToUpper(strings.TrimSpace(config.DefaultCurrency))
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "EUR"
	}
	config.DefaultExpenseAccount = strings.TrimSpace(config.DefaultExpenseAccount)
	config.DefaultIncomeAccount = strings.TrimSpace(config.DefaultIncomeAccount)

	if config.ImportBatchMaxItems <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive import batch limit configured; using default\" value=%d", config.ImportBatchMaxItems)
		config.ImportBatchMaxItems = 1000
	}
	if config.RequestTimeoutSeconds <= 0 {
		config.RequestTimeoutSeconds = 60
	}

	return
}
