package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/omnik2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const dailyResetJobName = "daily-energy-reset"

// DailyResetJob asks the master actor to zero the daily counters.
type DailyResetJob struct {
	rootContext *actor.RootContext
	masterActor *actor.PID
	timeout     time.Duration
	logger      *zap.Logger
}

var _ quartz.Job = (*DailyResetJob)(nil)

func NewDailyResetJob(rootContext *actor.RootContext, masterActor *actor.PID, timeout time.Duration, logger *zap.Logger) *DailyResetJob {
	return &DailyResetJob{
		rootContext: rootContext,
		masterActor: masterActor,
		timeout:     timeout,
		logger:      logger.With(zap.String("job", dailyResetJobName)),
	}
}

func (j *DailyResetJob) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := j.rootContext.RequestFuture(j.masterActor, domain.ResetDailyEnergyRequest{}, j.timeout).Result()
	if err != nil {
		j.logger.Error("daily reset request failed", zap.Error(err))
		return err
	}
	resp, ok := res.(domain.ResetDailyEnergyResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", res)
	}
	if resp.HasResponseError() {
		return resp.GetResponseError()
	}
	j.logger.Info("daily reset", zap.Bool("published", resp.Published))
	return nil
}

func (j *DailyResetJob) Description() string {
	return dailyResetJobName
}

// Scheduler runs jobs on local time cron expressions.
type Scheduler struct {
	sched  quartz.Scheduler
	logger *zap.Logger
}

func NewScheduler(logger *zap.Logger) (*Scheduler, error) {
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{sched: sched, logger: logger}, nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.sched.Start(ctx)
}

// Schedule registers job under its description. expr uses the quartz format
// with a leading seconds field.
func (s *Scheduler) Schedule(expr string, job quartz.Job) error {
	trigger, err := quartz.NewCronTriggerWithLoc(expr, time.Local)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if err := s.sched.ScheduleJob(quartz.NewJobDetail(job, quartz.NewJobKey(job.Description())), trigger); err != nil {
		return err
	}
	s.logger.Info("job scheduled", zap.String("job", job.Description()), zap.String("cron", expr))
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) {
	s.sched.Stop()
	s.sched.Wait(ctx)
}
