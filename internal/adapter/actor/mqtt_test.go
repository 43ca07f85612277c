package actor

import (
	"testing"
	"time"

	"github.com/berfenger/omnik2mqtt/internal/core/domain"
	"github.com/berfenger/omnik2mqtt/internal/core/events"
	"github.com/berfenger/omnik2mqtt/internal/util"
	"github.com/berfenger/omnik2mqtt/internal/util/actorutil"
	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	mqttActor := NewTestMQTTActor(&cfg, &es, logger)
	props := actor.PropsFromProducer(func() actor.Actor { return mqttActor })
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	for _, ev := range events.ReadingToUpdateEvents(omnik.SampleReading()) {
		es.Publish(ev)
	}
	// non sensor values are not forwarded
	es.Publish("noise")

	assert.Eventually(t, func() bool {
		return len(mqttActor.PublishedEvents()) == 6
	}, 2*time.Second, 50*time.Millisecond)

	ids := map[string]bool{}
	for _, ev := range mqttActor.PublishedEvents() {
		ids[ev.SensorId()] = true
	}
	assert.True(t, ids[domain.SENSOR_ID_CURRENT_POWER])
	assert.True(t, ids[domain.SENSOR_ID_WIFI_SIGNAL_QUALITY])

	context.Stop(pid)

	time.Sleep(500 * time.Millisecond)

	// unsubscribed on stop
	es.Publish(events.InverterOnlineUpdateEvent(true))
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, mqttActor.PublishedEvents(), 6)

	as.Shutdown()
}
