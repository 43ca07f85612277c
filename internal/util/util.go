package util

import (
	"github.com/berfenger/omnik2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Inverter: config.InverterConfig{
			Host:                 "-.-.-.-",
			SourceType:           "javascript",
			TCPPort:              8899,
			RequestTimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "omnik",
			HADiscoveryTopic: "homeassistant",
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis:   2000,
			OfflineAfterFailures: 2,
			DailyResetCron:       "0 0 0 * * *",
		},
		Port: 8080,
	}
}
