package cron

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/omnik2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDailyResetJob(t *testing.T) {
	logger := zap.Must(zap.NewDevelopment())
	as := actor.NewActorSystem()
	defer as.Shutdown()

	received := make(chan struct{}, 1)
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.ResetDailyEnergyRequest); ok {
			received <- struct{}{}
			ctx.Respond(domain.ResetDailyEnergyResponse{Published: true})
		}
	}))

	job := NewDailyResetJob(as.Root, pid, 2*time.Second, logger)
	assert.Equal(t, "daily-energy-reset", job.Description())
	require.NoError(t, job.Execute(context.Background()))

	select {
	case <-received:
	default:
		t.Fatal("reset request not received")
	}
}

func TestDailyResetJobTimeout(t *testing.T) {
	logger := zap.NewNop()
	as := actor.NewActorSystem()
	defer as.Shutdown()

	silent := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {}))

	job := NewDailyResetJob(as.Root, silent, 100*time.Millisecond, logger)
	assert.Error(t, job.Execute(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Execute(ctx), context.Canceled)
}

func TestScheduler(t *testing.T) {
	s, err := NewScheduler(zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	job := NewDailyResetJob(nil, nil, time.Second, zap.NewNop())
	require.NoError(t, s.Schedule("0 0 0 * * *", job))
	assert.Error(t, s.Schedule("not a cron", job))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	s.Stop(stopCtx)
}
