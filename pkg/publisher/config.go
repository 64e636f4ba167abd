package publisher

import (
	"fmt"
	"time"

	"github.com/travigo/fieldtrack/pkg/util"
)

type Config struct {
	ThrottleInterval time.Duration
	ReportTimeout    time.Duration
	APIURL           string
}

type fileConfig struct {
	Publisher struct {
		ThrottleInterval string `yaml:"throttle_interval"`
		ReportTimeout    string `yaml:"report_timeout"`
		APIURL           string `yaml:"api_url"`
	} `yaml:"publisher"`
}

const (
	defaultThrottleInterval = 30 * time.Second
	defaultReportTimeout    = 10 * time.Second
	defaultAPIURL           = "http://localhost:8080"
)

func DefaultConfig() Config {
	return Config{
		ThrottleInterval: defaultThrottleInterval,
		ReportTimeout:    defaultReportTimeout,
		APIURL:           defaultAPIURL,
	}
}

func GetConfig() (Config, error) {
	env := util.GetEnvironmentVariables()
	config := DefaultConfig()

	var file fileConfig
	if err := util.LoadConfigFile(env, &file); err != nil {
		return config, fmt.Errorf("read config file: %w", err)
	}

	throttle := firstNonEmpty(env["FIELDTRACK_THROTTLE_INTERVAL"], file.Publisher.ThrottleInterval)
	if throttle != "" {
		parsed, err := util.ParseDuration(throttle)
		if err != nil {
			return config, fmt.Errorf("FIELDTRACK_THROTTLE_INTERVAL: %w", err)
		}
		config.ThrottleInterval = parsed
	}

	timeout := firstNonEmpty(env["FIELDTRACK_REPORT_TIMEOUT"], file.Publisher.ReportTimeout)
	if timeout != "" {
		parsed, err := util.ParseDuration(timeout)
		if err != nil {
			return config, fmt.Errorf("FIELDTRACK_REPORT_TIMEOUT: %w", err)
		}
		if parsed <= 0 {
			return config, fmt.Errorf("FIELDTRACK_REPORT_TIMEOUT must be positive")
		}
		config.ReportTimeout = parsed
	}

	if apiURL := firstNonEmpty(env["FIELDTRACK_API_URL"], file.Publisher.APIURL); apiURL != "" {
		config.APIURL = apiURL
	}

	return config, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
