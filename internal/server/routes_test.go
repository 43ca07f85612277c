package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	adactor "github.com/berfenger/omnik2mqtt/internal/adapter/actor"
	"github.com/berfenger/omnik2mqtt/internal/core/domain"
	"github.com/berfenger/omnik2mqtt/internal/metrics"
	"github.com/berfenger/omnik2mqtt/internal/util/actorutil"
	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, target *actor.PID, as *actor.ActorSystem) http.Handler {
	s := &Server{
		rootContext:    as.Root,
		masterActor:    target,
		metrics:        metrics.New().Handler(),
		readingTimeout: 2 * time.Second,
	}
	return s.RegisterRoutes()
}

func spawnInverter(t *testing.T, reader omnik.Reader) (*actor.ActorSystem, *actor.PID) {
	logger := zap.NewNop()
	as := actorutil.NewActorSystemWithZapLogger(logger)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewInverterActor(reader, time.Second, logger)
	}))
	t.Cleanup(as.Shutdown)
	return as, pid
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadingHandler(t *testing.T) {
	as, pid := spawnInverter(t, omnik.CreateTestReader())
	h := newTestServer(t, pid, as)

	rec := get(h, "/api/reading")
	require.Equal(t, http.StatusOK, rec.Code)

	var reading omnik.Reading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reading))
	assert.Equal(t, *omnik.SampleReading(), reading)
}

func TestReadingHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"protocol", &omnik.ProtocolError{StatusCode: 401}, http.StatusBadGateway},
		{"connection", fmt.Errorf("%w: %w", omnik.ErrConnection, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"parse", &omnik.ParseError{Source: omnik.SourceJSON, Field: "i_sn"}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := omnik.CreateTestReader()
			reader.FailNext(tt.err)
			as, pid := spawnInverter(t, reader)
			h := newTestServer(t, pid, as)

			rec := get(h, "/api/reading")
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestReadingHandlerActorTimeout(t *testing.T) {
	as := actorutil.NewActorSystemWithZapLogger(zap.NewNop())
	t.Cleanup(as.Shutdown)
	silent := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {}))

	s := &Server{rootContext: as.Root, masterActor: silent, readingTimeout: 100 * time.Millisecond}
	rec := get(s.RegisterRoutes(), "/api/reading")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestHealthCheckHandler(t *testing.T) {
	as := actorutil.NewActorSystemWithZapLogger(zap.NewNop())
	t.Cleanup(as.Shutdown)

	healthy := true
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.ActorHealthRequest); ok {
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy})
		}
	}))
	h := newTestServer(t, pid, as)

	rec := get(h, "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	as, pid := spawnInverter(t, omnik.CreateTestReader())
	h := newTestServer(t, pid, as)

	rec := get(h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
