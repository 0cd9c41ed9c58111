package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager executes saga definitions and compensates completed steps when a
// later step fails
type Manager struct {
	logger   *zap.Logger
	listener func(SagaEvent)
}

// NewManager creates a new saga manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// OnEvent registers a callback invoked synchronously for every lifecycle event.
// It must be set before the first Run.
func (m *Manager) OnEvent(listener func(SagaEvent)) {
	m.listener = listener
}

// Run executes the steps in order. When a step fails every completed step is
// compensated in reverse order and the failing step's error is returned.
// Compensation runs on a context detached from cancellation so teardown still
// happens when the caller's context is the cause of the failure.
func (m *Manager) Run(ctx context.Context, def Definition, data SagaData) (*SagaInstance, error) {
	if data == nil {
		data = SagaData{}
	}

	instance := &SagaInstance{
		ID:         SagaID(fmt.Sprintf("%s_%s", def.Name, uuid.NewString())),
		Definition: def.Name,
		State:      SagaStateRunning,
		Steps:      make([]StepExecution, len(def.Steps)),
		StartedAt:  time.Now(),
	}
	for i, step := range def.Steps {
		instance.Steps[i] = StepExecution{ID: step.ID(), State: StepStatePending}
	}

	m.emit(SagaEvent{SagaID: instance.ID, Type: EventSagaStarted, Timestamp: instance.StartedAt})

	runCtx := ctx
	if def.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}

	lastCompleted := -1
	var stepErr error
	for i, step := range def.Steps {
		if stepErr = m.executeStep(runCtx, instance, i, step, data); stepErr != nil {
			break
		}
		lastCompleted = i
	}

	if stepErr == nil {
		m.finish(instance, SagaStateCompleted, EventSagaCompleted)
		return instance, nil
	}

	instance.Error = stepErr.Error()
	m.compensate(context.WithoutCancel(ctx), instance, def, lastCompleted, data)
	return instance, stepErr
}

func (m *Manager) executeStep(ctx context.Context, instance *SagaInstance, index int, step Step, data SagaData) error {
	exec := &instance.Steps[index]
	started := time.Now()
	exec.State = StepStateRunning
	exec.StartedAt = &started

	m.emit(SagaEvent{SagaID: instance.ID, StepID: step.ID(), Type: EventStepStarted, Timestamp: started})

	err := step.Execute(ctx, data)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	completed := time.Now()
	exec.CompletedAt = &completed

	if err != nil {
		exec.State = StepStateFailed
		exec.Error = err.Error()
		m.emit(SagaEvent{SagaID: instance.ID, StepID: step.ID(), Type: EventStepFailed, Timestamp: completed, Error: err.Error()})
		return fmt.Errorf("step %s failed: %w", step.ID(), err)
	}

	exec.State = StepStateCompleted
	m.emit(SagaEvent{SagaID: instance.ID, StepID: step.ID(), Type: EventStepCompleted, Timestamp: completed})
	return nil
}

// compensate runs compensation for completed steps in reverse order
func (m *Manager) compensate(ctx context.Context, instance *SagaInstance, def Definition, lastCompleted int, data SagaData) {
	for i := lastCompleted; i >= 0; i-- {
		step := def.Steps[i]
		if err := step.Compensate(ctx, data); err != nil {
			m.logger.Error("Compensation failed",
				zap.String("sagaID", string(instance.ID)),
				zap.String("stepID", string(step.ID())),
				zap.Error(err))
			continue
		}
		instance.Steps[i].State = StepStateCompensated
		m.emit(SagaEvent{SagaID: instance.ID, StepID: step.ID(), Type: EventStepCompensated, Timestamp: time.Now()})
	}

	m.finish(instance, SagaStateCompensated, EventSagaCompensated)
}

func (m *Manager) finish(instance *SagaInstance, state SagaState, eventType string) {
	now := time.Now()
	instance.State = state
	instance.CompletedAt = &now
	m.emit(SagaEvent{SagaID: instance.ID, Type: eventType, Timestamp: now, Error: instance.Error})
}

func (m *Manager) emit(event SagaEvent) {
	m.logger.Debug("Saga event",
		zap.String("sagaID", string(event.SagaID)),
		zap.String("stepID", string(event.StepID)),
		zap.String("type", event.Type))
	if m.listener != nil {
		m.listener(event)
	}
}
