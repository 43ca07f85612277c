package omnik

import (
	"time"

	"go.uber.org/zap"
)

type Instrument struct {
	RecordTime   func(fnName string, readTime time.Duration)
	RecordResult func(source SourceType, err error)
}

func RecordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			if instrument[i].RecordTime != nil {
				instrument[i].RecordTime(name, duration)
			}
		}
	}
}

func recordResult(source SourceType, err error, instrument []Instrument) {
	for i := range instrument {
		if instrument[i].RecordResult != nil {
			instrument[i].RecordResult(source, err)
		}
	}
}

func debugLoggerInstrumentation(logger *zap.Logger) *Instrument {
	return &Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("omnik request", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
