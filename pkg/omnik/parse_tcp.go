package omnik

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	uint16Unset        = 0xFFFF
	temperatureOffline = 65326

	InformationReplySize = 125
)

var expectedPadding0 = [3]byte{0x81, 0x02, 0x01}

type acOutputRaw struct {
	Frequency uint16
	Power     uint16
}

// informationReply mirrors the big-endian payload of a 0xB0 message.
type informationReply struct {
	Padding0        [3]byte
	SerialNumber    [16]byte
	Temperature     uint16
	DCInputVoltage  [3]uint16
	DCInputCurrent  [3]uint16
	ACOutputCurrent [3]uint16
	ACOutputVoltage [3]uint16
	ACOutput        [3]acOutputRaw
	EnergyToday     uint16
	EnergyTotal     uint32
	HoursTotal      uint32
	InverterActive  uint16
	Padding1        [4]byte
	Unknown0        uint16
	Padding2        [10]byte
	Firmware        [16]byte
	Padding3        [4]byte
	FirmwareSlave   [16]byte
	Padding4        [4]byte
}

// ParseTCP converts the payload of an information reply into a Reading.
// Unexpected padding is logged and otherwise ignored. A nil logger is allowed.
func ParseTCP(payload []byte, logger *zap.Logger) (*Reading, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(payload) < InformationReplySize {
		return nil, parseErr(SourceTCP, "", fmt.Errorf("information reply is %d bytes, expected %d", len(payload), InformationReplySize))
	}
	var raw informationReply
	if err := binary.Read(bytes.NewReader(payload), binary.BigEndian, &raw); err != nil {
		return nil, parseErr(SourceTCP, "", err)
	}

	serial := cString(raw.SerialNumber[:])
	if serial == "" {
		return nil, parseErr(SourceTCP, "serial_number", errMissing)
	}
	checkPadding(&raw, logger.With(zap.String("serial_number", serial)))

	var active bool
	switch raw.InverterActive {
	case 0:
		active = false
	case 1:
		active = true
	default:
		return nil, parseErr(SourceTCP, "inverter_active", fmt.Errorf("unexpected value %d", raw.InverterActive))
	}

	var dcInputs []DCInput
	for i := range raw.DCInputVoltage {
		in := DCInput{
			Channel:  i + 1,
			VoltageV: scaled(raw.DCInputVoltage[i], 10),
			CurrentA: scaled(raw.DCInputCurrent[i], 10),
		}
		if in.VoltageV == nil && in.CurrentA == nil {
			continue
		}
		dcInputs = append(dcInputs, in)
	}

	var acOutputs []ACOutput
	var power uint32
	powerSet := false
	for i := range raw.ACOutput {
		out := ACOutput{
			Channel:     i + 1,
			VoltageV:    scaled(raw.ACOutputVoltage[i], 10),
			CurrentA:    scaled(raw.ACOutputCurrent[i], 10),
			FrequencyHz: scaled(raw.ACOutput[i].Frequency, 100),
		}
		if p := raw.ACOutput[i].Power; p != uint16Unset {
			w := uint32(p)
			out.PowerWatt = &w
			power += w
			powerSet = true
		}
		if out.VoltageV == nil && out.CurrentA == nil && out.FrequencyHz == nil && out.PowerWatt == nil {
			continue
		}
		acOutputs = append(acOutputs, out)
	}
	if !powerSet {
		return nil, parseErr(SourceTCP, "ac_output_power", errMissing)
	}

	var temperature *float64
	if raw.Temperature != temperatureOffline {
		t := divide(raw.Temperature, 10)
		temperature = &t
	}
	hours := raw.HoursTotal

	return &Reading{
		Source: SourceTCP,
		Inverter: Inverter{
			SerialNumber:     serial,
			Firmware:         cString(raw.Firmware[:]),
			FirmwareSlave:    cString(raw.FirmwareSlave[:]),
			CurrentPowerWatt: power,
			EnergyTodayKWh:   divide(raw.EnergyToday, 100),
			EnergyTotalKWh:   float64(raw.EnergyTotal) / 10,
			TemperatureC:     temperature,
			HoursTotal:       &hours,
			Active:           &active,
			DCInputs:         dcInputs,
			ACOutputs:        acOutputs,
		},
	}, nil
}

func divide(v uint16, by float64) float64 {
	return float64(v) / by
}

// scaled is nil for the unset marker.
func scaled(v uint16, by float64) *float64 {
	if v == uint16Unset {
		return nil
	}
	f := divide(v, by)
	return &f
}

func checkPadding(raw *informationReply, logger *zap.Logger) {
	if raw.Padding0 != expectedPadding0 {
		logger.Warn("unexpected information reply header", zap.Binary("padding0", raw.Padding0[:]))
	}
	paddings := []struct {
		name  string
		value []byte
	}{
		{"padding1", raw.Padding1[:]},
		{"padding2", raw.Padding2[:]},
		{"padding3", raw.Padding3[:]},
		{"padding4", raw.Padding4[:]},
	}
	for _, p := range paddings {
		if !allZero(p.value) {
			logger.Warn("unexpected information reply padding", zap.String("field", p.name), zap.Binary("value", p.value))
		}
	}
	if raw.Unknown0 != 0 && raw.Unknown0 != uint16Unset {
		logger.Warn("unexpected information reply value", zap.String("field", "unknown0"), zap.Uint16("value", raw.Unknown0))
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0x00); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
