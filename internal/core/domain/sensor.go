package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE         = "bridge"
	SENSOR_ID_INVERTER_ONLINE      = "inverter_online"
	SENSOR_ID_CURRENT_POWER        = "current_power"
	SENSOR_ID_RATED_POWER          = "rated_power"
	SENSOR_ID_ENERGY_TODAY         = "energy_today"
	SENSOR_ID_ENERGY_TOTAL         = "energy_total"
	SENSOR_ID_ALARM_CODE           = "alarm_code"
	SENSOR_ID_INVERTER_TEMPERATURE = "inverter_temperature"
	SENSOR_ID_HOURS_TOTAL          = "hours_total"
	SENSOR_ID_INVERTER_ACTIVE      = "inverter_active"
	SENSOR_ID_WIFI_SIGNAL_QUALITY  = "wifi_signal_quality"
	BUTTON_ID_POLL                 = "poll"
	STATE_CLASS_MEASUREMENT        = "measurement"
	STATE_CLASS_TOTAL_INCREASING   = "total_increasing"
	DEVICE_CLASS_CURRENT           = "current"
	DEVICE_CLASS_DURATION          = "duration"
	DEVICE_CLASS_ENERGY            = "energy"
	DEVICE_CLASS_FREQUENCY         = "frequency"
	DEVICE_CLASS_POWER             = "power"
	DEVICE_CLASS_TEMPERATURE       = "temperature"
	DEVICE_CLASS_VOLTAGE           = "voltage"
	DEVICE_CLASS_CONNECTIVITY      = "connectivity"
	DEVICE_CLASS_RUNNING           = "running"
	ENTITY_CLASS_DIAGNOSTIC        = "diagnostic"
	SENSOR_TYPE_SENSOR             = "sensor"
	SENSOR_TYPE_BINARY             = "binary_sensor"
	dcInputSensorPrefix            = "dc_input"
	acOutputSensorPrefix           = "ac_output"
	omnikManufacturer              = "Omnik"
	bridgeManufacturer             = "ACasal"
	wifiModuleModel                = "Wi-Fi kit"
	unknownInverterModel           = "Inverter"
	powerUnit                      = "W"
	energyUnit                     = "kWh"
	voltageUnit                    = "V"
	currentUnit                    = "A"
	frequencyUnit                  = "Hz"
	temperatureUnit                = "°C"
	hoursUnit                      = "h"
	percentUnit                    = "%"
)

func DCInputVoltageSensorId(channel int) string {
	return fmt.Sprintf("%s_%d_voltage", dcInputSensorPrefix, channel)
}

func DCInputCurrentSensorId(channel int) string {
	return fmt.Sprintf("%s_%d_current", dcInputSensorPrefix, channel)
}

func ACOutputVoltageSensorId(channel int) string {
	return fmt.Sprintf("%s_%d_voltage", acOutputSensorPrefix, channel)
}

func ACOutputCurrentSensorId(channel int) string {
	return fmt.Sprintf("%s_%d_current", acOutputSensorPrefix, channel)
}

func ACOutputFrequencySensorId(channel int) string {
	return fmt.Sprintf("%s_%d_frequency", acOutputSensorPrefix, channel)
}

func ACOutputPowerSensorId(channel int) string {
	return fmt.Sprintf("%s_%d_power", acOutputSensorPrefix, channel)
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("omnik_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: bridgeManufacturer,
		Model:        "omnik2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Omnik bridge %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(inv *omnik.Inverter) Device {
	model := inv.Model
	if model == "" {
		model = unknownInverterModel
	}
	return Device{
		Id:           fmt.Sprintf("omnik_inverter_%s", md5HashShort(inv.SerialNumber)),
		Version:      inv.Firmware,
		Manufacturer: omnikManufacturer,
		Model:        model,
		Name:         fmt.Sprintf("%s %s %s", omnikManufacturer, model, md5HashShort(inv.SerialNumber)),
	}
}

// WifiModuleDevice returns nil when the reading carries no module data (tcp).
func WifiModuleDevice(reading *omnik.Reading) *Device {
	dev := reading.Device
	if dev.Firmware == "" && dev.IPAddress == "" && dev.SignalQuality == nil {
		return nil
	}
	return &Device{
		Id:           fmt.Sprintf("omnik_wifi_%s", md5HashShort(reading.Inverter.SerialNumber)),
		Version:      dev.Firmware,
		Manufacturer: omnikManufacturer,
		Model:        wifiModuleModel,
		Name:         fmt.Sprintf("%s %s %s", omnikManufacturer, wifiModuleModel, md5HashShort(reading.Inverter.SerialNumber)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func InverterSensors(inverterDevice Device, inv *omnik.Inverter) []GenericSensor {

	var sensors []GenericSensor

	// Inverter availability
	sensors = append(sensors, GenericSensor{
		Device:      inverterDevice,
		Id:          SENSOR_ID_INVERTER_ONLINE,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Inverter online",
		DeviceClass: DEVICE_CLASS_CONNECTIVITY,
		UniqueId:    uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_ONLINE),
	})

	// Current power
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_CURRENT_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Current power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: powerUnit,
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_CURRENT_POWER),
	})

	// Energy today
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_ENERGY_TODAY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Energy today",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: energyUnit,
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_ENERGY_TODAY),
	})

	// Energy total
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_ENERGY_TOTAL,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Energy total",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: energyUnit,
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_ENERGY_TOTAL),
	})

	// Rated power
	if inv.RatedPowerWatt > 0 {
		sensors = append(sensors, GenericSensor{
			Device:            inverterDevice,
			Id:                SENSOR_ID_RATED_POWER,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Rated power",
			DeviceClass:       DEVICE_CLASS_POWER,
			UnitOfMeasurement: powerUnit,
			EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_RATED_POWER),
		})
	}

	// Alarm code
	sensors = append(sensors, GenericSensor{
		Device:         inverterDevice,
		Id:             SENSOR_ID_ALARM_CODE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Alarm code",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:alert-circle-outline",
		UniqueId:       uniqueId(inverterDevice.Id, SENSOR_ID_ALARM_CODE),
	})

	sensors = append(sensors, inverterTCPSensors(inverterDevice, inv)...)

	return sensors
}

// inverterTCPSensors covers the values only the tcp source reports.
func inverterTCPSensors(inverterDevice Device, inv *omnik.Inverter) []GenericSensor {

	var sensors []GenericSensor

	if inv.TemperatureC != nil {
		sensors = append(sensors, GenericSensor{
			Device:            inverterDevice,
			Id:                SENSOR_ID_INVERTER_TEMPERATURE,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Inverter temperature",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_TEMPERATURE,
			UnitOfMeasurement: temperatureUnit,
			UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_TEMPERATURE),
		})
	}
	if inv.HoursTotal != nil {
		sensors = append(sensors, GenericSensor{
			Device:            inverterDevice,
			Id:                SENSOR_ID_HOURS_TOTAL,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Operating hours",
			StateClass:        STATE_CLASS_TOTAL_INCREASING,
			DeviceClass:       DEVICE_CLASS_DURATION,
			UnitOfMeasurement: hoursUnit,
			EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_HOURS_TOTAL),
		})
	}
	if inv.Active != nil {
		sensors = append(sensors, GenericSensor{
			Device:      inverterDevice,
			Id:          SENSOR_ID_INVERTER_ACTIVE,
			SensorType:  SENSOR_TYPE_BINARY,
			Name:        "Inverter active",
			DeviceClass: DEVICE_CLASS_RUNNING,
			UniqueId:    uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_ACTIVE),
		})
	}

	for _, dc := range inv.DCInputs {
		if dc.VoltageV != nil {
			sensors = append(sensors, measurement(inverterDevice, DCInputVoltageSensorId(dc.Channel), fmt.Sprintf("DC input %d voltage", dc.Channel), DEVICE_CLASS_VOLTAGE, voltageUnit, nil))
		}
		if dc.CurrentA != nil {
			sensors = append(sensors, measurement(inverterDevice, DCInputCurrentSensorId(dc.Channel), fmt.Sprintf("DC input %d current", dc.Channel), DEVICE_CLASS_CURRENT, currentUnit, nil))
		}
	}
	for _, ac := range inv.ACOutputs {
		if ac.VoltageV != nil {
			sensors = append(sensors, measurement(inverterDevice, ACOutputVoltageSensorId(ac.Channel), fmt.Sprintf("AC output %d voltage", ac.Channel), DEVICE_CLASS_VOLTAGE, voltageUnit, nil))
		}
		if ac.CurrentA != nil {
			sensors = append(sensors, measurement(inverterDevice, ACOutputCurrentSensorId(ac.Channel), fmt.Sprintf("AC output %d current", ac.Channel), DEVICE_CLASS_CURRENT, currentUnit, nil))
		}
		if ac.FrequencyHz != nil {
			sensors = append(sensors, measurement(inverterDevice, ACOutputFrequencySensorId(ac.Channel), fmt.Sprintf("AC output %d frequency", ac.Channel), DEVICE_CLASS_FREQUENCY, frequencyUnit, optionalBool(false)))
		}
		if ac.PowerWatt != nil {
			sensors = append(sensors, measurement(inverterDevice, ACOutputPowerSensorId(ac.Channel), fmt.Sprintf("AC output %d power", ac.Channel), DEVICE_CLASS_POWER, powerUnit, nil))
		}
	}

	return sensors
}

func WifiModuleSensors(wifiDevice Device, dev *omnik.Device) []GenericSensor {

	var sensors []GenericSensor

	if dev.SignalQuality != nil {
		sensors = append(sensors, GenericSensor{
			Device:            wifiDevice,
			Id:                SENSOR_ID_WIFI_SIGNAL_QUALITY,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Signal quality",
			StateClass:        STATE_CLASS_MEASUREMENT,
			UnitOfMeasurement: percentUnit,
			EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
			Icon:              "mdi:wifi",
			UniqueId:          uniqueId(wifiDevice.Id, SENSOR_ID_WIFI_SIGNAL_QUALITY),
		})
	}

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func PollButtons(inverterDevice Device) []GenericButton {
	return []GenericButton{{
		Device:   inverterDevice,
		Id:       BUTTON_ID_POLL,
		Name:     "Poll now",
		UniqueId: uniqueId(inverterDevice.Id, BUTTON_ID_POLL),
		Icon:     "mdi:refresh",
	}}
}

func measurement(device Device, id, name, deviceClass, unit string, enabledByDefault *bool) GenericSensor {
	return GenericSensor{
		Device:            device,
		Id:                id,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              name,
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       deviceClass,
		UnitOfMeasurement: unit,
		EnabledByDefault:  enabledByDefault,
		UniqueId:          uniqueId(device.Id, id),
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
