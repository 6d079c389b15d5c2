package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SchedulerConfig holds all configuration for the scheduler process.
type SchedulerConfig struct {
	FDRServiceURL         string `mapstructure:"FDR_SERVICE_URL"`
	InternalAPIKey        string `mapstructure:"INTERNAL_API_KEY"`
	MaturitySweepSchedule string `mapstructure:"MATURITY_SWEEP_SCHEDULE"`
	ExpiryNoticeSchedule  string `mapstructure:"EXPIRY_NOTICE_SCHEDULE"`
	ExpiryNoticeDays      int    `mapstructure:"EXPIRY_NOTICE_DAYS"`
	Timezone              string `mapstructure:"SCHEDULER_TIMEZONE"`

	Location *time.Location `mapstructure:"-"`
}

// LoadSchedulerConfig reads scheduler configuration from environment variables.
func LoadSchedulerConfig() (*SchedulerConfig, error) {
	viper.SetDefault("MATURITY_SWEEP_SCHEDULE", "5 0 * * *") // 00:05 every day.
	viper.SetDefault("EXPIRY_NOTICE_SCHEDULE", "0 9 * * *")  // 09:00 every day.
	viper.SetDefault("EXPIRY_NOTICE_DAYS", 7)
	viper.SetDefault("SCHEDULER_TIMEZONE", "Asia/Kolkata")
	viper.AutomaticEnv()

	_ = viper.BindEnv("FDR_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "FDR_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("MATURITY_SWEEP_SCHEDULE")
	_ = viper.BindEnv("EXPIRY_NOTICE_SCHEDULE")
	_ = viper.BindEnv("EXPIRY_NOTICE_DAYS")
	_ = viper.BindEnv("SCHEDULER_TIMEZONE", "SCHEDULER_TIMEZONE", "BUSINESS_TIMEZONE")

	var config SchedulerConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.FDRServiceURL = strings.TrimSpace(config.FDRServiceURL)
	if config.FDRServiceURL == "" {
		return nil, errors.New("FDR_SERVICE_URL is required")
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if config.InternalAPIKey == "" {
		return nil, errors.New("INTERNAL_API_KEY is required")
	}
	if config.ExpiryNoticeDays <= 0 {
		config.ExpiryNoticeDays = 7
	}

	loc, err := time.LoadLocation(strings.TrimSpace(config.Timezone))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", config.Timezone, err)
	}
	config.Location = loc

	return &config, nil
}
