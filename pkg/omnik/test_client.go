package omnik

import (
	"context"
	"sync"
)

func CreateTestReader() *TestReader {
	return &TestReader{Reading: SampleReading()}
}

// TestReader serves a canned Reading. Errors queued with FailNext are
// returned first, one per Fetch.
type TestReader struct {
	mu       sync.Mutex
	Reading  *Reading
	failures []error
	calls    int
}

func (r *TestReader) Fetch(ctx context.Context) (*Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err := ctx.Err(); err != nil {
		return nil, connectionErr(err)
	}
	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return nil, err
	}
	reading := *r.Reading
	return &reading, nil
}

func (r *TestReader) FailNext(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, errs...)
}

func (r *TestReader) SetReading(reading *Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reading = reading
}

func (r *TestReader) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func SampleReading() *Reading {
	rssi := 96
	return &Reading{
		Source: SourceJavascript,
		Inverter: Inverter{
			SerialNumber:     "NLDN302013518090",
			Model:            "omnik3000tl",
			Firmware:         "V5.3-00157",
			FirmwareSlave:    "V4.13-00071",
			RatedPowerWatt:   3000,
			CurrentPowerWatt: 1225,
			EnergyTodayKWh:   4.78,
			EnergyTotalKWh:   1934.6,
		},
		Device: Device{
			SignalQuality: &rssi,
			Firmware:      "H4.01.38Y1.0.09W1.0.08",
			IPAddress:     "192.168.1.100",
		},
	}
}

var _ Reader = (*TestReader)(nil)
