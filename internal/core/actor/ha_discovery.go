package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/omnik2mqtt/internal/config"
	"github.com/berfenger/omnik2mqtt/internal/core/domain"
	"github.com/berfenger/omnik2mqtt/internal/util/actorutil"
	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const defaultDiscoveryRetryInterval = 1 * time.Minute

type HADiscoveryActor struct {
	config           *config.Config
	behavior         actor.Behavior
	stash            *actorutil.Stash
	scheduler        *scheduler.TimerScheduler
	inverterActor    *actor.PID
	mqttActor        *actor.PID
	inverterHealthy  bool
	mqttActorHealthy bool
	healthyRecv      int
	retryInterval    time.Duration
	cancelRetry      scheduler.CancelFunc

	logger *zap.Logger
}

type discoveryRetry struct {
}

func NewHADiscoveryActor(config *config.Config, inverterActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:        config,
		inverterActor: inverterActor,
		mqttActor:     mqttActor,
		behavior:      actor.NewBehavior(),
		stash:         &actorutil.Stash{},
		retryInterval: defaultDiscoveryRetryInterval,
		logger:        actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.checkHealth(ctx)
	case discoveryRetry:
		state.logger.Debug("hadiscovery@starting retry")
		state.checkHealth(ctx)
	case *actor.Stopping:
		state.stopRetry()
	case *actor.Restarting:
		state.stopRetry()
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) checkHealth(ctx actor.Context) {
	// Check Inverter and MQTT actor healthy
	state.healthyRecv = 0
	state.inverterHealthy = false
	state.mqttActorHealthy = false
	// Inverter Actor Request
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: false,
		}
	})
	// MQTT Actor Request
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: false,
		}
	})
	state.behavior.Become(state.WaitingHealthyReceive)
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_INVERTER:
				state.inverterHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {
			if state.inverterHealthy && state.mqttActorHealthy {
				// Ask the inverter for a reading to describe the devices
				timeout := state.config.Inverter.RequestTimeout() + pollReplyGrace
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.GetReadingRequest{}, timeout), func(err error) any {
					return domain.GetReadingResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: err,
						},
					}
				})
				state.behavior.Become(state.WaitingReadingReceive)
			} else {
				state.logger.Warn("hadiscovery: inverter or mqtt actor not healthy, retrying", zap.Duration("in", state.retryInterval))
				state.scheduleRetry(ctx)
			}
		}
	case *actor.Stopping:
		state.stopRetry()
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingReadingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetReadingResponse:
		if msg.HasResponseError() || msg.Reading == nil {
			state.logger.Warn("hadiscovery@reading inverter unreachable, retrying", zap.Error(msg.GetResponseError()), zap.Duration("in", state.retryInterval))
			state.scheduleRetry(ctx)
			return
		}
		state.logger.Debug("hadiscovery@reading: GetReadingResponse", zap.String("serial", msg.Reading.Inverter.SerialNumber))

		sensors, buttons := DiscoveryEntities(state.config.MQTT.BaseTopic, msg.Reading)
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: sensors,
			Buttons: buttons,
		})
		state.behavior.Become(state.Done)
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.stopRetry()
	default:
		state.logger.Debug("hadiscovery@reading: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "done",
		})
	}
}

func (state *HADiscoveryActor) scheduleRetry(ctx actor.Context) {
	state.cancelRetry = state.scheduler.SendOnce(state.retryInterval, ctx.Self(), discoveryRetry{})
	state.behavior.Become(state.StartingReceive)
	state.stash.UnstashAll(ctx)
}

func (state *HADiscoveryActor) stopRetry() {
	if state.cancelRetry != nil {
		state.cancelRetry()
		state.cancelRetry = nil
	}
}

// DiscoveryEntities lists every entity announced for a reading. Only the first
// entity of each device carries the full device description.
func DiscoveryEntities(baseTopic string, reading *omnik.Reading) ([]domain.GenericSensor, []domain.GenericButton) {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(baseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	inverterDevice := domain.InverterDevice(&reading.Inverter)
	inverterDevice.ViaDevice = bridgeDevice.Id
	inverterSensors := domain.InverterSensors(inverterDevice, &reading.Inverter)
	for i := range inverterSensors {
		if i > 0 {
			inverterSensors[i].Device = domain.IdDevice(inverterDevice)
		}
		sensors = append(sensors, inverterSensors[i])
	}

	if wifiDevice := domain.WifiModuleDevice(reading); wifiDevice != nil {
		wifiDevice.ViaDevice = inverterDevice.Id
		wifiSensors := domain.WifiModuleSensors(*wifiDevice, &reading.Device)
		for i := range wifiSensors {
			if i > 0 {
				wifiSensors[i].Device = domain.IdDevice(*wifiDevice)
			}
			sensors = append(sensors, wifiSensors[i])
		}
	}

	buttons := domain.PollButtons(domain.IdDevice(inverterDevice))

	return sensors, buttons
}
