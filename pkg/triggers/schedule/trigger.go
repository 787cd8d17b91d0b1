// Package schedule starts registered workflows on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrMissingWorkflow = errors.New("schedule trigger workflow is required")
	ErrMissingCron     = errors.New("schedule trigger cron expression is required")
)

// Callback starts one run of workflow.
type Callback func(ctx context.Context, workflow string) error

type Trigger struct {
	ID       string
	CronExpr string
	Workflow string
	cron     *cron.Cron
	callback Callback
	logger   *slog.Logger
}

func NewTrigger(id, cronExpr, workflow string, logger *slog.Logger) (*Trigger, error) {
	trigger := &Trigger{
		ID:       id,
		CronExpr: cronExpr,
		Workflow: workflow,
		logger: logger.With(
			"module", "schedule_trigger",
			"id", id,
			"cron", cronExpr,
			"workflow", workflow,
		),
	}

	err := trigger.Validate()
	if err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.Workflow == "" {
		return ErrMissingWorkflow
	}

	if t.CronExpr == "" {
		return ErrMissingCron
	}

	_, err := cron.ParseStandard(t.CronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Start schedules the trigger. Ticks that arrive while the previous callback
// is still running are skipped.
func (t *Trigger) Start(ctx context.Context, callback Callback) error {
	t.logger.InfoContext(ctx, "Starting schedule trigger")
	t.callback = callback

	cronLogger := &slogAdapter{logger: t.logger}

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	), cron.WithLogger(cronLogger))

	id, err := t.cron.AddFunc(t.CronExpr, func() { t.run(ctx) })
	if err != nil {
		return fmt.Errorf("failed to add cron job for trigger %s: %w", t.ID, err)
	}

	t.logger.InfoContext(ctx, "Added cron job for trigger", "entry", id)
	t.cron.Start()

	return nil
}

func (t *Trigger) run(ctx context.Context) {
	t.logger.InfoContext(ctx, "Cron job triggered", "at", time.Now().UTC().Format(time.RFC3339))

	err := t.callback(ctx, t.Workflow)
	if err != nil {
		t.logger.ErrorContext(ctx, "Error starting scheduled workflow", "error", err)
	}
}

// Stop halts the schedule and waits for a running callback to return or ctx to end.
func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping schedule trigger")

	if t.cron == nil {
		return nil
	}

	select {
	case <-t.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a *slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.logger.Error(msg, append(keysAndValues, "error", err)...)
}
