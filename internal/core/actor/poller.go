package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/omnik2mqtt/internal/config"
	"github.com/berfenger/omnik2mqtt/internal/core/domain"
	"github.com/berfenger/omnik2mqtt/internal/core/events"
	. "github.com/berfenger/omnik2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	// reply margin on top of the inverter request timeout
	pollReplyGrace = 3 * time.Second
	// gives the mqtt actor time to connect before the first reading
	firstPollDelay = 1 * time.Second
)

type availability int

const (
	availabilityUnknown availability = iota
	availabilityOnline
	availabilityOffline
)

type PollerActor struct {
	behavior   actor.Behavior
	stash      *Stash
	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc

	inverterActor *actor.PID
	config        *config.Config
	eventStream   *eventstream.EventStream

	failures     uint32
	availability availability
	pollWaiters  []*actor.PID

	logger *zap.Logger
}

type pollTick struct {
}

func NewPollerActor(config *config.Config, inverterActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:        config,
		inverterActor: inverterActor,
		behavior:      actor.NewBehavior(),
		stash:         &Stash{},
		logger:        ActorLogger(domain.ACTOR_ID_POLLER, logger),
		eventStream:   eventStream,
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.cancelTick = state.scheduler.SendRepeatedly(firstPollDelay, state.config.MonitorConfig.PollInterval(), ctx.Self(), pollTick{})
	case *actor.Stopping:
		state.stopTicker()
	case *actor.Restarting:
		state.stopTicker()
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "idle",
		})
	case pollTick:
		state.logger.Debug("poller@default tick")
		state.poll(ctx)
	case domain.PollNowRequest:
		state.logger.Debug("poller@default PollNowRequest")
		if replyTo := ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			state.pollWaiters = append(state.pollWaiters, replyTo)
		}
		state.poll(ctx)
	case domain.ResetDailyEnergyRequest:
		published := state.availability != availabilityOnline
		state.logger.Info("poller@default ResetDailyEnergyRequest", zap.Bool("published", published))
		if published {
			state.publish(events.DailyEnergyResetEvents()...)
		}
		if ForRequest(msg).ReplyTo(ctx) != nil {
			ForRequest(msg).Respond(ctx, domain.ResetDailyEnergyResponse{Published: published})
		}
	default:
		state.logger.Debug("poller@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PollerActor) WaitingReadingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetReadingResponse:
		state.onReading(msg)
		state.respondPollWaiters(ctx, msg.GetResponseError())
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case pollTick:
		// previous poll still running
		state.logger.Debug("poller@waiting tick skipped")
	case domain.PollNowRequest:
		state.logger.Debug("poller@waiting PollNowRequest skipped")
		if ForRequest(msg).ReplyTo(ctx) != nil {
			ForRequest(msg).Respond(ctx, domain.PollNowResponse{Skipped: true})
		}
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "polling",
		})
	case *actor.Stopping:
		state.stopTicker()
	case *actor.Restarting:
		state.stopTicker()
	default:
		state.logger.Debug("poller@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) poll(ctx actor.Context) {
	timeout := state.config.Inverter.RequestTimeout() + pollReplyGrace
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.GetReadingRequest{}, timeout), func(err error) any {
		return domain.GetReadingResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	state.behavior.BecomeStacked(state.WaitingReadingReceive)
}

func (state *PollerActor) onReading(msg domain.GetReadingResponse) {
	if msg.HasResponseError() || msg.Reading == nil {
		state.failures++
		state.logger.Warn("poller@waiting GetReadingResponse error", zap.Error(msg.GetResponseError()), zap.Uint32("failures", state.failures))
		if state.failures >= state.config.MonitorConfig.OfflineAfterFailures && state.availability != availabilityOffline {
			state.availability = availabilityOffline
			state.logger.Info("poller: inverter offline")
			state.publish(events.InverterOnlineUpdateEvent(false))
		}
		return
	}
	state.logger.Debug("poller@waiting GetReadingResponse", zap.Uint32("power", msg.Reading.Inverter.CurrentPowerWatt))
	state.failures = 0
	if state.availability != availabilityOnline {
		state.availability = availabilityOnline
		state.logger.Info("poller: inverter online")
		state.publish(events.InverterOnlineUpdateEvent(true))
	}
	state.publish(events.ReadingToUpdateEvents(msg.Reading)...)
}

func (state *PollerActor) respondPollWaiters(ctx actor.Context, err error) {
	for _, pid := range state.pollWaiters {
		ctx.Send(pid, domain.PollNowResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		})
	}
	state.pollWaiters = nil
}

func (state *PollerActor) publish(evs ...any) {
	for _, ev := range evs {
		state.eventStream.Publish(ev)
	}
}

func (state *PollerActor) stopTicker() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
}
