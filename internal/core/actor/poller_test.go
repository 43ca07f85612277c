package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	adactor "github.com/berfenger/omnik2mqtt/internal/adapter/actor"
	"github.com/berfenger/omnik2mqtt/internal/core/domain"
	"github.com/berfenger/omnik2mqtt/internal/util"
	"github.com/berfenger/omnik2mqtt/internal/util/actorutil"
	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type eventCollector struct {
	mu     sync.Mutex
	events []domain.SensorUpdateEvent
}

func collectEvents(es *eventstream.EventStream) *eventCollector {
	c := &eventCollector{}
	es.Subscribe(func(evt any) {
		if ev, ok := evt.(domain.SensorUpdateEvent); ok {
			c.mu.Lock()
			c.events = append(c.events, ev)
			c.mu.Unlock()
		}
	})
	return c
}

// last returns the most recent event for a sensor id.
func (c *eventCollector) last(id string) domain.SensorUpdateEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].SensorId() == id {
			return c.events[i]
		}
	}
	return nil
}

func spawnPoller(t *testing.T, reader omnik.Reader, pollInterval time.Duration) (*actor.ActorSystem, *actor.PID, *eventCollector) {
	cfg := util.LoadTestConfig()
	cfg.MonitorConfig.PollIntervalMillis = uint32(pollInterval.Milliseconds())

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	es := &eventstream.EventStream{}
	collector := collectEvents(es)

	inverterPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewInverterActor(reader, cfg.Inverter.RequestTimeout(), logger)
	}))
	pollerPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, inverterPID, es, logger)
	}))
	t.Cleanup(func() {
		as.Root.Stop(pollerPID)
		as.Root.Stop(inverterPID)
		as.Shutdown()
	})
	return as, pollerPID, collector
}

func TestPollerPublishesReadings(t *testing.T) {

	reader := omnik.CreateTestReader()
	as, pid, collector := spawnPoller(t, reader, 300*time.Millisecond)

	require.Eventually(t, func() bool {
		return collector.last(domain.SENSOR_ID_CURRENT_POWER) != nil
	}, 5*time.Second, 50*time.Millisecond)

	online, ok := collector.last(domain.SENSOR_ID_INVERTER_ONLINE).(domain.BinarySensorUpdateEvent)
	require.True(t, ok)
	assert.True(t, online.Value)

	power := collector.last(domain.SENSOR_ID_CURRENT_POWER).(domain.FloatSensorUpdateEvent)
	assert.Equal(t, 1225.0, power.Value)

	// polls keep going
	assert.Eventually(t, func() bool { return reader.Calls() >= 3 }, 5*time.Second, 50*time.Millisecond)

	// daily reset is not published while the inverter answers
	result, err := as.Root.RequestFuture(pid, domain.ResetDailyEnergyRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.False(t, result.(domain.ResetDailyEnergyResponse).Published)
}

func TestPollerGoesOffline(t *testing.T) {

	reader := omnik.CreateTestReader()
	failures := make([]error, 100)
	for i := range failures {
		failures[i] = errors.Join(omnik.ErrConnection, errors.New("no route to host"))
	}
	reader.FailNext(failures...)
	as, pid, collector := spawnPoller(t, reader, 200*time.Millisecond)

	require.Eventually(t, func() bool {
		return collector.last(domain.SENSOR_ID_INVERTER_ONLINE) != nil
	}, 5*time.Second, 50*time.Millisecond)

	online := collector.last(domain.SENSOR_ID_INVERTER_ONLINE).(domain.BinarySensorUpdateEvent)
	assert.False(t, online.Value)
	assert.GreaterOrEqual(t, reader.Calls(), 2)
	assert.Nil(t, collector.last(domain.SENSOR_ID_CURRENT_POWER))

	result, err := as.Root.RequestFuture(pid, domain.ResetDailyEnergyRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, result.(domain.ResetDailyEnergyResponse).Published)

	assert.Eventually(t, func() bool {
		ev, ok := collector.last(domain.SENSOR_ID_ENERGY_TODAY).(domain.FloatSensorUpdateEvent)
		return ok && ev.Value == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestPollerPollNow(t *testing.T) {

	reader := omnik.CreateTestReader()
	as, pid, collector := spawnPoller(t, reader, time.Minute)

	result, err := as.Root.RequestFuture(pid, domain.PollNowRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.PollNowResponse)
	assert.False(t, resp.Skipped)
	assert.False(t, resp.HasResponseError())

	assert.Eventually(t, func() bool {
		return collector.last(domain.SENSOR_ID_ENERGY_TOTAL) != nil
	}, 2*time.Second, 50*time.Millisecond)
}
