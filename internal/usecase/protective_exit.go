package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"OptionsOracle/internal/domain/models"
	domsvc "OptionsOracle/internal/domain/service"
	"OptionsOracle/pkg/logger"
	"OptionsOracle/pkg/queue"
)

// JobArmProtectiveExit is the queue message type that places the stop and
// target legs of a filled entry.
const JobArmProtectiveExit = "protective_exit.arm"

// ExitPlacer places a protective exit with the broker.
type ExitPlacer interface {
	ArmProtectiveExit(ctx context.Context, exit models.ProtectiveExit) (string, error)
}

// ExitArmer arms the two-leg exit after an acknowledged entry.
type ExitArmer interface {
	Arm(ctx context.Context, exit models.ProtectiveExit) error
}

// DirectArmer places the exit inline.
type DirectArmer struct {
	placer ExitPlacer
	log    *logger.Logger
}

func NewDirectArmer(placer ExitPlacer, log *logger.Logger) *DirectArmer {
	if log == nil {
		log = logger.Nop()
	}
	return &DirectArmer{placer: placer, log: log.Component("protective-exit")}
}

func (a *DirectArmer) Arm(ctx context.Context, exit models.ProtectiveExit) error {
	id, err := a.placer.ArmProtectiveExit(ctx, exit)
	if err != nil {
		return err
	}
	a.log.Info("protective exit armed",
		logger.String("parent", exit.ParentOrderID),
		logger.String("exit_id", id),
		logger.Float("stop_loss", exit.StopLoss),
		logger.Float("target", exit.Target),
	)
	return nil
}

// QueueArmer hands the exit to the job queue so broker retries happen off
// the decision loop.
type QueueArmer struct {
	q queue.Enqueuer
}

func NewQueueArmer(q queue.Enqueuer) *QueueArmer {
	return &QueueArmer{q: q}
}

func (a *QueueArmer) Arm(ctx context.Context, exit models.ProtectiveExit) error {
	if err := a.q.Enqueue(ctx, JobArmProtectiveExit, exit); err != nil {
		return fmt.Errorf("enqueue protective exit: %w", err)
	}
	return nil
}

// ProtectiveExitJob is the queue worker side of QueueArmer.
type ProtectiveExitJob struct {
	armer *DirectArmer
}

func NewProtectiveExitJob(placer ExitPlacer, log *logger.Logger) *ProtectiveExitJob {
	return &ProtectiveExitJob{armer: NewDirectArmer(placer, log)}
}

func (j *ProtectiveExitJob) Type() string { return JobArmProtectiveExit }

func (j *ProtectiveExitJob) Handle(ctx context.Context, payload json.RawMessage) error {
	exit, err := queue.Decode[models.ProtectiveExit](payload)
	if err != nil {
		return err
	}
	if exit.Qty <= 0 || exit.Instrument.Token == "" {
		return queue.Permanent(errors.New("protective exit without instrument or quantity"))
	}
	err = j.armer.Arm(ctx, exit)
	if errors.Is(err, domsvc.ErrOrderRejected) {
		return queue.Permanent(err)
	}
	return err
}

var (
	_ ExitArmer = (*DirectArmer)(nil)
	_ ExitArmer = (*QueueArmer)(nil)
	_ queue.Job = (*ProtectiveExitJob)(nil)
)
