package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel      zapcore.Level
	Inverter      InverterConfig `mapstructure:"inverter"`
	MQTT          MQTTConfig     `mapstructure:"mqtt"`
	MonitorConfig MonitorConfig  `mapstructure:"monitor"`
	Port          uint           `mapstructure:"port"`
	HttpLog       bool           `mapstructure:"http_log"`
}

type InverterConfig struct {
	Host                 string
	Port                 uint
	Scheme               string
	Username             string
	Password             string
	SourceType           string `mapstructure:"source_type"`
	TCPPort              uint   `mapstructure:"tcp_port"`
	SerialNumber         uint32 `mapstructure:"serial_number"`
	RequestTimeoutMillis uint32 `mapstructure:"request_timeout_millis"`
}

type MonitorConfig struct {
	PollIntervalMillis   uint32 `mapstructure:"poll_interval_millis"`
	OfflineAfterFailures uint32 `mapstructure:"offline_after_failures"`
	DailyResetCron       string `mapstructure:"daily_reset_cron"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (c InverterConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

// ClientConfig maps the inverter section to the client configuration.
func (c InverterConfig) ClientConfig() (omnik.Config, error) {
	source, err := omnik.ParseSourceType(c.SourceType)
	if err != nil {
		return omnik.Config{}, err
	}
	return omnik.Config{
		Host:         c.Host,
		Port:         c.Port,
		Scheme:       c.Scheme,
		Username:     c.Username,
		Password:     c.Password,
		Source:       source,
		Timeout:      c.RequestTimeout(),
		TCPPort:      c.TCPPort,
		SerialNumber: c.SerialNumber,
	}, nil
}

func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	if !baseTopicRegexp.MatchString(lowerBaseTopic) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
