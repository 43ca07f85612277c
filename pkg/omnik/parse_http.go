package omnik

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	varPattern     = regexp.MustCompile(`var\s+(\w+)\s*=\s*"([^"]*)"\s*;`)
	jsArrayPattern = regexp.MustCompile(`(?:myDeviceArray\[0\]|webData)\s*=\s*"([^"]*)"\s*;`)
)

// inverterFields holds the textual values of one response before conversion.
type inverterFields struct {
	serial        string
	model         string
	firmware      string
	firmwareSlave string
	alarm         string
	ratedPower    string
	currentPower  string
	energyToday   string
	energyTotal   string
}

type deviceFields struct {
	firmware      string
	signalQuality string
	ipAddress     string
}

// ParseJSON parses the body of /status.json?CMD=inv_query.
func ParseJSON(body string) (*Reading, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, parseErr(SourceJSON, "", err)
	}
	get := func(key string) string {
		v, ok := data[key]
		if !ok || v == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(v))
	}

	inv, err := buildInverter(SourceJSON, inverterFields{
		serial:        get("i_sn"),
		model:         get("i_modle"),
		firmware:      get("i_ver_m"),
		firmwareSlave: get("i_ver_s"),
		alarm:         get("i_alarm"),
		ratedPower:    get("i_pow"),
		currentPower:  get("i_pow_n"),
		energyToday:   get("i_eday"),
		energyTotal:   get("i_eall"),
	}, 1, 1)
	if err != nil {
		return nil, err
	}
	return &Reading{
		Source:   SourceJSON,
		Inverter: *inv,
		Device: buildDevice(deviceFields{
			firmware:  strings.TrimPrefix(get("g_ver"), "VER:"),
			ipAddress: get("ip"),
		}),
	}, nil
}

// ParseHTML parses the body of /status.html.
func ParseHTML(body string) (*Reading, error) {
	vars := extractVars(body)
	inv, err := buildInverter(SourceHTML, inverterFields{
		serial:        vars["webdata_sn"],
		model:         vars["webdata_pv_type"],
		firmware:      vars["webdata_msvn"],
		firmwareSlave: vars["webdata_ssvn"],
		alarm:         vars["webdata_alarm"],
		ratedPower:    vars["webdata_rate_p"],
		currentPower:  vars["webdata_now_p"],
		energyToday:   vars["webdata_today_e"],
		energyTotal:   vars["webdata_total_e"],
	}, 1, 1)
	if err != nil {
		return nil, err
	}
	return &Reading{
		Source:   SourceHTML,
		Inverter: *inv,
		Device: buildDevice(deviceFields{
			firmware:      vars["cover_ver"],
			signalQuality: vars["cover_sta_rssi"],
			ipAddress:     vars["cover_sta_ip"],
		}),
	}, nil
}

// ParseJS parses the body of /js/status.js. Energy values are reported in
// hundredths (today) and tenths (total) of a kWh.
func ParseJS(body string) (*Reading, error) {
	m := jsArrayPattern.FindStringSubmatch(body)
	if m == nil {
		return nil, parseErr(SourceJavascript, "", fmt.Errorf("inverter data array not found"))
	}
	values := strings.Split(m[1], ",")
	at := func(i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}

	inv, err := buildInverter(SourceJavascript, inverterFields{
		serial:        at(0),
		firmware:      at(1),
		firmwareSlave: at(2),
		model:         at(3),
		ratedPower:    at(4),
		currentPower:  at(5),
		energyToday:   at(6),
		energyTotal:   at(7),
		alarm:         at(8),
	}, 100, 10)
	if err != nil {
		return nil, err
	}

	vars := extractVars(body)
	return &Reading{
		Source:   SourceJavascript,
		Inverter: *inv,
		Device: buildDevice(deviceFields{
			firmware:      vars["version"],
			signalQuality: vars["m2mRssi"],
			ipAddress:     vars["wanIp"],
		}),
	}, nil
}

func extractVars(body string) map[string]string {
	vars := map[string]string{}
	for _, m := range varPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := vars[m[1]]; !ok {
			vars[m[1]] = strings.TrimSpace(m[2])
		}
	}
	return vars
}

func buildInverter(source SourceType, f inverterFields, todayDivisor, totalDivisor float64) (*Inverter, error) {
	if f.serial == "" {
		return nil, parseErr(source, "serial_number", errMissing)
	}
	current, err := requiredNumber(source, "current_power", f.currentPower)
	if err != nil {
		return nil, err
	}
	today, err := requiredNumber(source, "energy_today", f.energyToday)
	if err != nil {
		return nil, err
	}
	total, err := requiredNumber(source, "energy_total", f.energyTotal)
	if err != nil {
		return nil, err
	}
	var rated float64
	if f.ratedPower != "" {
		if rated, err = requiredNumber(source, "rated_power", f.ratedPower); err != nil {
			return nil, err
		}
	}

	return &Inverter{
		SerialNumber:     f.serial,
		Model:            f.model,
		Firmware:         f.firmware,
		FirmwareSlave:    f.firmwareSlave,
		AlarmCode:        f.alarm,
		RatedPowerWatt:   uint32(math.Round(rated)),
		CurrentPowerWatt: uint32(math.Round(current)),
		EnergyTodayKWh:   today / todayDivisor,
		EnergyTotalKWh:   total / totalDivisor,
	}, nil
}

func buildDevice(f deviceFields) Device {
	d := Device{
		Firmware:  f.firmware,
		IPAddress: f.ipAddress,
	}
	if rssi := strings.TrimSuffix(f.signalQuality, "%"); rssi != "" {
		if v, err := strconv.Atoi(rssi); err == nil {
			d.SignalQuality = &v
		}
	}
	return d
}

func requiredNumber(source SourceType, field, value string) (float64, error) {
	if value == "" {
		return 0, parseErr(source, field, errMissing)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, parseErr(source, field, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, parseErr(source, field, fmt.Errorf("not a finite number: %s", value))
	}
	if v < 0 {
		return 0, parseErr(source, field, fmt.Errorf("negative value: %s", value))
	}
	return v, nil
}
