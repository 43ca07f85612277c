package omnik

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jsonBody = `{"g_sn":"1608449224","g_ver":"VER:H4.01.38Y1.0.09W1.0.08","time":"1626612180",` +
		`"i_sn":"NLDN302013518090","i_modle":"omnik3000tl","i_ver_m":"V5.3-00157","i_ver_s":"V4.13-00071",` +
		`"i_pow":"3000","i_pow_n":1225,"i_eday":"4.78","i_eall":"1934.6","i_alarm":"","ip":"192.168.1.100"}`

	htmlBody = `<html><head><script type="text/javascript">
var webdata_sn = "NLDN302013518090";
var webdata_msvn = "V5.3-00157";
var webdata_ssvn = "V4.13-00071";
var webdata_pv_type = "omnik3000tl";
var webdata_rate_p = "3000";
var webdata_now_p = "1225";
var webdata_today_e = "4.78";
var webdata_total_e = "1934.6";
var webdata_alarm = "";
var cover_mid = "1608449224";
var cover_ver = "H4.01.38Y1.0.09W1.0.08";
var cover_sta_rssi = "96%";
var cover_sta_ip = "192.168.1.100";
</script></head><body></body></html>`

	jsBody = `var version="H4.01.38Y1.0.09W1.0.08";var m2mMid="1608449224";var m2mRssi="96%";var wanIp="192.168.1.100";
var myDeviceArray=new Array();
myDeviceArray[0]="NLDN302013518090,V5.3-00157,V4.13-00071,omnik3000tl,3000,1225,478,19346,,1,";`

	webDataBody = `var version="H4.01.38Y1.0.09W1.0.08";var m2mRssi="54%";var wanIp="10.0.0.7";
var webData="NLDN302013518090,V5.3-00157,V4.13-00071,omnik2000tl,2000,0,0,20133,,";`
)

func assertSampleInverter(t *testing.T, inv Inverter) {
	assert := assert.New(t)
	assert.Equal("NLDN302013518090", inv.SerialNumber)
	assert.Equal("omnik3000tl", inv.Model)
	assert.Equal("V5.3-00157", inv.Firmware)
	assert.Equal("V4.13-00071", inv.FirmwareSlave)
	assert.Equal(uint32(3000), inv.RatedPowerWatt)
	assert.Equal(uint32(1225), inv.CurrentPowerWatt)
	assert.InDelta(4.78, inv.EnergyTodayKWh, 1e-9)
	assert.InDelta(1934.6, inv.EnergyTotalKWh, 1e-9)
	assert.Nil(inv.TemperatureC)
	assert.Empty(inv.DCInputs)
}

func TestParseJSON(t *testing.T) {
	reading, err := ParseJSON(jsonBody)
	require.NoError(t, err)

	assert.Equal(t, SourceJSON, reading.Source)
	assertSampleInverter(t, reading.Inverter)
	assert.Equal(t, "H4.01.38Y1.0.09W1.0.08", reading.Device.Firmware)
	assert.Equal(t, "192.168.1.100", reading.Device.IPAddress)
	assert.Nil(t, reading.Device.SignalQuality)
}

func TestParseHTML(t *testing.T) {
	reading, err := ParseHTML(htmlBody)
	require.NoError(t, err)

	assert.Equal(t, SourceHTML, reading.Source)
	assertSampleInverter(t, reading.Inverter)
	assert.Equal(t, "H4.01.38Y1.0.09W1.0.08", reading.Device.Firmware)
	assert.Equal(t, "192.168.1.100", reading.Device.IPAddress)
	require.NotNil(t, reading.Device.SignalQuality)
	assert.Equal(t, 96, *reading.Device.SignalQuality)
}

func TestParseJS(t *testing.T) {
	reading, err := ParseJS(jsBody)
	require.NoError(t, err)

	assert.Equal(t, SourceJavascript, reading.Source)
	assertSampleInverter(t, reading.Inverter)
	require.NotNil(t, reading.Device.SignalQuality)
	assert.Equal(t, 96, *reading.Device.SignalQuality)
	assert.Equal(t, "192.168.1.100", reading.Device.IPAddress)
}

func TestParseJSWebData(t *testing.T) {
	reading, err := ParseJS(webDataBody)
	require.NoError(t, err)

	assert.Equal(t, "omnik2000tl", reading.Inverter.Model)
	assert.Equal(t, uint32(0), reading.Inverter.CurrentPowerWatt)
	assert.Equal(t, 0.0, reading.Inverter.EnergyTodayKWh)
	assert.InDelta(t, 2013.3, reading.Inverter.EnergyTotalKWh, 1e-9)
	assert.Equal(t, 54, *reading.Device.SignalQuality)
	assert.Equal(t, "10.0.0.7", reading.Device.IPAddress)
}

func TestParseIsIdempotent(t *testing.T) {
	first, err := ParseJS(jsBody)
	require.NoError(t, err)
	second, err := ParseJS(jsBody)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseMissingRequiredField(t *testing.T) {
	tests := []struct {
		name   string
		parse  func(string) (*Reading, error)
		body   string
		source SourceType
		field  string
	}{
		{"json serial", ParseJSON, strings.Replace(jsonBody, `"i_sn":"NLDN302013518090",`, "", 1), SourceJSON, "serial_number"},
		{"json current power", ParseJSON, strings.Replace(jsonBody, `"i_pow_n":1225,`, "", 1), SourceJSON, "current_power"},
		{"json empty energy today", ParseJSON, strings.Replace(jsonBody, `"i_eday":"4.78"`, `"i_eday":""`, 1), SourceJSON, "energy_today"},
		{"html energy total", ParseHTML, strings.Replace(htmlBody, `var webdata_total_e = "1934.6";`, "", 1), SourceHTML, "energy_total"},
		{"html non numeric power", ParseHTML, strings.Replace(htmlBody, `"1225"`, `"n/a"`, 1), SourceHTML, "current_power"},
		{"js negative energy", ParseJS, strings.Replace(jsBody, ",478,", ",-478,", 1), SourceJavascript, "energy_today"},
		{"js truncated array", ParseJS, `myDeviceArray[0]="NLDN302013518090,V5.3-00157,V4.13-00071,omnik3000tl,3000,1225";`, SourceJavascript, "energy_today"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading, err := tt.parse(tt.body)
			assert.Nil(t, reading)
			require.ErrorIs(t, err, ErrParse)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.source, perr.Source)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestParseMalformedBody(t *testing.T) {
	_, err := ParseJSON("{not json")
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseJS("var nothing=\"here\";")
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseHTML("<html></html>")
	assert.ErrorIs(t, err, ErrParse)
}

func TestAsciiOnly(t *testing.T) {
	assert.Equal(t, `var a="b";`, asciiOnly([]byte("var a=\"b\xc3\xa9\";")))
}
