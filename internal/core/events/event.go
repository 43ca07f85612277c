package events

import (
	. "github.com/berfenger/omnik2mqtt/internal/core/domain"
	"github.com/berfenger/omnik2mqtt/pkg/omnik"
)

func ReadingToUpdateEvents(reading *omnik.Reading) []any {
	var events []any
	events = append(events, InverterToUpdateEvents(&reading.Inverter)...)
	events = append(events, DeviceToUpdateEvents(&reading.Device)...)
	return events
}

func InverterToUpdateEvents(inv *omnik.Inverter) []any {
	var events []any

	// Current power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CURRENT_POWER,
		},
		Value:    float64(inv.CurrentPowerWatt),
		Decimals: 0,
	})
	// Energy today
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_ENERGY_TODAY,
		},
		Value:    inv.EnergyTodayKWh,
		Decimals: 2,
	})
	// Energy total
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_ENERGY_TOTAL,
		},
		Value:    inv.EnergyTotalKWh,
		Decimals: 1,
	})
	// Rated power
	if inv.RatedPowerWatt > 0 {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_RATED_POWER,
			},
			Value:    float64(inv.RatedPowerWatt),
			Decimals: 0,
		})
	}
	// Alarm code
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_ALARM_CODE,
		},
		Value: inv.AlarmCode,
	})
	// Temperature
	if inv.TemperatureC != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_INVERTER_TEMPERATURE,
			},
			Value:    *inv.TemperatureC,
			Decimals: 1,
		})
	}
	// Operating hours
	if inv.HoursTotal != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_HOURS_TOTAL,
			},
			Value:    float64(*inv.HoursTotal),
			Decimals: 0,
		})
	}
	// Active
	if inv.Active != nil {
		events = append(events, BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_INVERTER_ACTIVE,
			},
			Value: *inv.Active,
		})
	}

	for _, dc := range inv.DCInputs {
		events = appendOptional(events, DCInputVoltageSensorId(dc.Channel), dc.VoltageV, 1)
		events = appendOptional(events, DCInputCurrentSensorId(dc.Channel), dc.CurrentA, 1)
	}
	for _, ac := range inv.ACOutputs {
		events = appendOptional(events, ACOutputVoltageSensorId(ac.Channel), ac.VoltageV, 1)
		events = appendOptional(events, ACOutputCurrentSensorId(ac.Channel), ac.CurrentA, 1)
		events = appendOptional(events, ACOutputFrequencySensorId(ac.Channel), ac.FrequencyHz, 2)
		if ac.PowerWatt != nil {
			events = append(events, floatEvent(ACOutputPowerSensorId(ac.Channel), float64(*ac.PowerWatt), 0))
		}
	}

	return events
}

func DeviceToUpdateEvents(dev *omnik.Device) []any {
	var events []any
	if dev.SignalQuality != nil {
		events = append(events, floatEvent(SENSOR_ID_WIFI_SIGNAL_QUALITY, float64(*dev.SignalQuality), 0))
	}
	return events
}

func InverterOnlineUpdateEvent(online bool) any {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_ONLINE,
		},
		Value: online,
	}
}

// DailyEnergyResetEvents zeroes the counters that restart every day.
func DailyEnergyResetEvents() []any {
	var events []any
	events = append(events, floatEvent(SENSOR_ID_ENERGY_TODAY, 0, 2))
	events = append(events, floatEvent(SENSOR_ID_CURRENT_POWER, 0, 0))
	return events
}

func appendOptional(events []any, id string, value *float64, decimals uint) []any {
	if value == nil {
		return events
	}
	return append(events, floatEvent(id, *value, decimals))
}

func floatEvent(id string, value float64, decimals uint) FloatSensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value:    value,
		Decimals: decimals,
	}
}
