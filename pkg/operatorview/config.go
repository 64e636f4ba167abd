package operatorview

import (
	"fmt"
	"time"

	"github.com/travigo/fieldtrack/pkg/tracking"
	"github.com/travigo/fieldtrack/pkg/util"
)

type Config struct {
	// How often the displayed day is refetched from the backend
	RefreshInterval time.Duration
	// How often the wall clock used for online/offline status advances
	TickInterval     time.Duration
	OfflineThreshold time.Duration

	Timezone     string
	RosterFilter string
	APIURL       string
}

type fileConfig struct {
	OperatorView struct {
		RefreshInterval  string `yaml:"refresh_interval"`
		TickInterval     string `yaml:"tick_interval"`
		OfflineThreshold string `yaml:"offline_threshold"`
		Timezone         string `yaml:"timezone"`
		RosterFilter     string `yaml:"roster_filter"`
		APIURL           string `yaml:"api_url"`
	} `yaml:"operator_view"`
}

var defaultConfig = Config{
	RefreshInterval:  20 * time.Second,
	TickInterval:     60 * time.Second,
	OfflineThreshold: tracking.DefaultOfflineThreshold,
	Timezone:         "Local",
	APIURL:           "http://localhost:8080",
}

// GetConfig returns the defaults overlaid by the config file and then the environment
func GetConfig() (Config, error) {
	return configFromEnvironment(util.GetEnvironmentVariables())
}

func configFromEnvironment(env map[string]string) (Config, error) {
	config := defaultConfig

	var file fileConfig
	if err := util.LoadConfigFile(env, &file); err != nil {
		return config, fmt.Errorf("read config file: %w", err)
	}

	values := map[string]string{
		"FIELDTRACK_REFRESH_INTERVAL":  file.OperatorView.RefreshInterval,
		"FIELDTRACK_TICK_INTERVAL":     file.OperatorView.TickInterval,
		"FIELDTRACK_OFFLINE_THRESHOLD": file.OperatorView.OfflineThreshold,
		"FIELDTRACK_TIMEZONE":          file.OperatorView.Timezone,
		"FIELDTRACK_ROSTER_FILTER":     file.OperatorView.RosterFilter,
		"FIELDTRACK_API_URL":           file.OperatorView.APIURL,
	}
	for key := range values {
		if env[key] != "" {
			values[key] = env[key]
		}
	}

	durations := map[string]*time.Duration{
		"FIELDTRACK_REFRESH_INTERVAL":  &config.RefreshInterval,
		"FIELDTRACK_TICK_INTERVAL":     &config.TickInterval,
		"FIELDTRACK_OFFLINE_THRESHOLD": &config.OfflineThreshold,
	}
	for key, target := range durations {
		if values[key] == "" {
			continue
		}

		parsed, err := util.ParseDuration(values[key])
		if err != nil {
			return config, fmt.Errorf("%s: %w", key, err)
		}
		if parsed <= 0 {
			return config, fmt.Errorf("%s must be positive", key)
		}
		*target = parsed
	}

	if values["FIELDTRACK_TIMEZONE"] != "" {
		config.Timezone = values["FIELDTRACK_TIMEZONE"]
	}
	if values["FIELDTRACK_ROSTER_FILTER"] != "" {
		config.RosterFilter = values["FIELDTRACK_ROSTER_FILTER"]
	}
	if values["FIELDTRACK_API_URL"] != "" {
		config.APIURL = values["FIELDTRACK_API_URL"]
	}

	return config, nil
}
