package omnik

import (
	"context"
	"fmt"
	"strings"
)

type SourceType string

// source types
const (
	SourceJSON       SourceType = "json"
	SourceHTML       SourceType = "html"
	SourceJavascript SourceType = "javascript"
	SourceTCP        SourceType = "tcp"
)

func ParseSourceType(s string) (SourceType, error) {
	switch st := SourceType(strings.ToLower(strings.TrimSpace(s))); st {
	case SourceJSON, SourceHTML, SourceJavascript, SourceTCP:
		return st, nil
	case "":
		return SourceJavascript, nil
	default:
		return "", fmt.Errorf("%w: unknown source type %q", ErrInvalidConfig, s)
	}
}

// DCInput is one PV string as reported over TCP. Channel is the 1-based
// physical string number, values the inverter leaves unset are nil.
type DCInput struct {
	Channel  int      `json:"channel" yaml:"channel"`
	VoltageV *float64 `json:"voltage_v,omitempty" yaml:"voltage_v,omitempty"`
	CurrentA *float64 `json:"current_a,omitempty" yaml:"current_a,omitempty"`
}

// ACOutput is one grid phase as reported over TCP.
type ACOutput struct {
	Channel     int      `json:"channel" yaml:"channel"`
	VoltageV    *float64 `json:"voltage_v,omitempty" yaml:"voltage_v,omitempty"`
	CurrentA    *float64 `json:"current_a,omitempty" yaml:"current_a,omitempty"`
	FrequencyHz *float64 `json:"frequency_hz,omitempty" yaml:"frequency_hz,omitempty"`
	PowerWatt   *uint32  `json:"power_w,omitempty" yaml:"power_w,omitempty"`
}

type Inverter struct {
	SerialNumber     string  `json:"serial_number" yaml:"serial_number"`
	Model            string  `json:"model,omitempty" yaml:"model,omitempty"`
	Firmware         string  `json:"firmware,omitempty" yaml:"firmware,omitempty"`
	FirmwareSlave    string  `json:"firmware_slave,omitempty" yaml:"firmware_slave,omitempty"`
	AlarmCode        string  `json:"alarm_code,omitempty" yaml:"alarm_code,omitempty"`
	RatedPowerWatt   uint32  `json:"rated_power_w,omitempty" yaml:"rated_power_w,omitempty"`
	CurrentPowerWatt uint32  `json:"current_power_w" yaml:"current_power_w"`
	EnergyTodayKWh   float64 `json:"energy_today_kwh" yaml:"energy_today_kwh"`
	EnergyTotalKWh   float64 `json:"energy_total_kwh" yaml:"energy_total_kwh"`

	// TCP only
	TemperatureC *float64   `json:"temperature_c,omitempty" yaml:"temperature_c,omitempty"`
	HoursTotal   *uint32    `json:"hours_total,omitempty" yaml:"hours_total,omitempty"`
	Active       *bool      `json:"active,omitempty" yaml:"active,omitempty"`
	DCInputs     []DCInput  `json:"dc_inputs,omitempty" yaml:"dc_inputs,omitempty"`
	ACOutputs    []ACOutput `json:"ac_outputs,omitempty" yaml:"ac_outputs,omitempty"`
}

// Device describes the Wi-Fi logger module. It is empty for the TCP source.
type Device struct {
	SignalQuality *int   `json:"signal_quality,omitempty" yaml:"signal_quality,omitempty"`
	Firmware      string `json:"firmware,omitempty" yaml:"firmware,omitempty"`
	IPAddress     string `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
}

type Reading struct {
	Source   SourceType `json:"source" yaml:"source"`
	Inverter Inverter   `json:"inverter" yaml:"inverter"`
	Device   Device     `json:"device" yaml:"device"`
}

type Reader interface {
	Fetch(ctx context.Context) (*Reading, error)
}
