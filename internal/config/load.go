package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const EnvPrefix = "omnik"

// Load reads the configuration from the environment and, if CONFIG_FILE is
// set, from a yaml file.
func Load(v *viper.Viper) (*Config, error) {

	// alias PORT => OMNIK_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("OMNIK_PORT", port)
	}

	setConfigDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			err = v.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch v.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check inverter
	if cfg.Inverter.Host == "" {
		return errors.New("config param inverter.host is required")
	}
	source, err := omnik.ParseSourceType(cfg.Inverter.SourceType)
	if err != nil {
		return fmt.Errorf("config param inverter.source_type: %w", err)
	}
	cfg.Inverter.SourceType = string(source)
	if source == omnik.SourceTCP && cfg.Inverter.SerialNumber == 0 {
		return errors.New("config param inverter.serial_number is required for the tcp source")
	}
	if source == omnik.SourceHTML && (cfg.Inverter.Username == "" || cfg.Inverter.Password == "") {
		return errors.New("config params inverter.username and inverter.password are required for the html source")
	}

	// check bounds
	if cfg.Inverter.RequestTimeoutMillis < 500 {
		return errors.New("config param inverter.request_timeout_millis should be >= 500")
	}
	if cfg.MonitorConfig.PollIntervalMillis < 1000 {
		return errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}
	if cfg.MonitorConfig.PollIntervalMillis <= cfg.Inverter.RequestTimeoutMillis {
		return errors.New("config param monitor.poll_interval_millis must be > inverter.request_timeout_millis")
	}
	if cfg.MonitorConfig.OfflineAfterFailures == 0 {
		return errors.New("config param monitor.offline_after_failures should be > 0")
	}
	if cfg.MonitorConfig.DailyResetCron != "" {
		if _, err := quartz.NewCronTrigger(cfg.MonitorConfig.DailyResetCron); err != nil {
			return fmt.Errorf("config param monitor.daily_reset_cron: %w", err)
		}
	}
	return nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("inverter.host", "")
	v.SetDefault("inverter.port", 0)
	v.SetDefault("inverter.scheme", "http")
	v.SetDefault("inverter.username", "")
	v.SetDefault("inverter.password", "")
	v.SetDefault("inverter.source_type", string(omnik.SourceJavascript))
	v.SetDefault("inverter.tcp_port", omnik.DefaultTCPPort)
	v.SetDefault("inverter.serial_number", 0)
	v.SetDefault("inverter.request_timeout_millis", omnik.DefaultTimeout.Milliseconds())
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.base_topic", "omnik")
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("monitor.poll_interval_millis", 30000)
	v.SetDefault("monitor.offline_after_failures", 3)
	v.SetDefault("monitor.daily_reset_cron", "0 0 0 * * *")
	v.SetDefault("port", 8080)
	v.SetDefault("http_log", false)
}

// SafeCopy returns the config with credentials redacted.
func SafeCopy(cfg Config) Config {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	if cfg.Inverter.Password != "" {
		cfg.Inverter.Password = "*redacted*"
	}
	return cfg
}
