package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/omnik2mqtt/internal/core/domain"
	"github.com/berfenger/omnik2mqtt/internal/util/actorutil"
	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	inverterStateIdle    = "idle"
	inverterStateWaiting = "waiting"
	// the client enforces its own timeout, this one only guards a stuck task
	inverterTaskGrace = 2 * time.Second
)

// InverterActor serializes access to the inverter. Requests received while a
// fetch is in flight are stashed and served afterwards.
type InverterActor struct {
	*actorutil.ActorWithStates
	stash   *actorutil.Stash
	reader  omnik.Reader
	timeout time.Duration
	logger  *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

type idleState struct{ *InverterActor }
type waitingState struct{ *InverterActor }

func (idleState) Name() string    { return inverterStateIdle }
func (waitingState) Name() string { return inverterStateWaiting }

func (s idleState) Receive(ctx actor.Context)    { s.DefaultReceive(ctx) }
func (s waitingState) Receive(ctx actor.Context) { s.WaitingReading(ctx) }

func NewInverterActor(reader omnik.Reader, timeout time.Duration, logger *zap.Logger) *InverterActor {
	act := &InverterActor{
		reader:  reader,
		timeout: timeout,
		stash:   &actorutil.Stash{},
		logger:  actorutil.ActorLogger(domain.ACTOR_ID_INVERTER, logger),
	}
	act.ActorWithStates = actorutil.NewActorWithStates(idleState{act})
	return act
}

func (state *InverterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("inverter@idle started")
	case domain.ActorHealthRequest:
		state.logger.Debug("inverter@idle ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: true,
			State:   state.StateName(),
		})
	case domain.GetReadingRequest:
		state.logger.Debug("inverter@idle GetReadingRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getReading),
			mapTaskResult[domain.GetReadingResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetReadingResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: taskError(err),
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout + inverterTaskGrace).PipeTo(ctx.Self())
		state.BecomeStacked(waitingState{state})
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("inverter@idle default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InverterActor) WaitingReading(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("inverter@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: true,
			State:   state.StateName(),
		})
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("inverter@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterActor) getReading() (*domain.GetReadingResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), state.timeout)
	defer cancel()
	reading, err := state.reader.Fetch(ctx)
	if err != nil {
		state.logger.Warn("inverter fetch failed", zap.Error(err))
		return &domain.GetReadingResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}, nil
	}
	return &domain.GetReadingResponse{
		Reading: reading,
	}, nil
}

func (state *InverterActor) close() {
	if c, ok := state.reader.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			state.logger.Warn("inverter close failed", zap.Error(err))
		}
	}
}

// taskError keeps errors from the client as they are and reports anything
// else (task timeout, panic) as a connection failure.
func taskError(err error) error {
	switch {
	case errors.Is(err, omnik.ErrConnection), errors.Is(err, omnik.ErrProtocol), errors.Is(err, omnik.ErrParse):
		return err
	default:
		return fmt.Errorf("%w: %w", omnik.ErrConnection, err)
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
