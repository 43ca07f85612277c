package events

import (
	"testing"

	"github.com/berfenger/omnik2mqtt/internal/core/domain"
	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatValues(evs []any) map[string]float64 {
	values := map[string]float64{}
	for _, ev := range evs {
		if f, ok := ev.(domain.FloatSensorUpdateEvent); ok {
			values[f.Id] = f.Value
		}
	}
	return values
}

func TestReadingToUpdateEvents(t *testing.T) {
	values := floatValues(ReadingToUpdateEvents(omnik.SampleReading()))

	assert.Equal(t, 1225.0, values[domain.SENSOR_ID_CURRENT_POWER])
	assert.Equal(t, 4.78, values[domain.SENSOR_ID_ENERGY_TODAY])
	assert.Equal(t, 1934.6, values[domain.SENSOR_ID_ENERGY_TOTAL])
	assert.Equal(t, 3000.0, values[domain.SENSOR_ID_RATED_POWER])
	assert.Equal(t, 96.0, values[domain.SENSOR_ID_WIFI_SIGNAL_QUALITY])
}

func TestChannelEventsFollowPhysicalChannel(t *testing.T) {
	dc1Voltage, dc3Voltage, dc3Current := 245.6, 239.8, 2.9
	acPower := uint32(950)
	inv := &omnik.Inverter{
		SerialNumber: "NLDN302013518090",
		DCInputs: []omnik.DCInput{
			{Channel: 1, VoltageV: &dc1Voltage},
			{Channel: 3, VoltageV: &dc3Voltage, CurrentA: &dc3Current},
		},
		ACOutputs: []omnik.ACOutput{
			{Channel: 2, PowerWatt: &acPower},
		},
	}

	values := floatValues(InverterToUpdateEvents(inv))

	require.Contains(t, values, "dc_input_1_voltage")
	assert.Equal(t, 245.6, values["dc_input_1_voltage"])
	assert.NotContains(t, values, "dc_input_1_current")
	assert.NotContains(t, values, "dc_input_2_voltage")
	assert.Equal(t, 239.8, values["dc_input_3_voltage"])
	assert.Equal(t, 2.9, values["dc_input_3_current"])
	assert.Equal(t, 950.0, values["ac_output_2_power"])
	assert.NotContains(t, values, "ac_output_1_power")
	assert.NotContains(t, values, "ac_output_2_voltage")
}

func TestDailyEnergyResetEvents(t *testing.T) {
	values := floatValues(DailyEnergyResetEvents())
	assert.Equal(t, map[string]float64{
		domain.SENSOR_ID_ENERGY_TODAY:  0,
		domain.SENSOR_ID_CURRENT_POWER: 0,
	}, values)
}
