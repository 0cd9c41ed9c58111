package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionRegistry hands out the session controller of each user
type SessionRegistry struct {
	deps        ControllerDeps
	mu          sync.Mutex
	controllers map[string]*SessionController
}

// NewSessionRegistry creates a registry whose controllers share deps
func NewSessionRegistry(deps ControllerDeps) *SessionRegistry {
	return &SessionRegistry{
		deps:        deps,
		controllers: make(map[string]*SessionController),
	}
}

// Get returns the user's controller, creating it on first use
func (r *SessionRegistry) Get(userID string) *SessionController {
	r.mu.Lock()
	defer r.mu.Unlock()

	controller, ok := r.controllers[userID]
	if !ok {
		controller = NewSessionController(userID, r.deps)
		r.controllers[userID] = controller
	}
	return controller
}

// Controllers returns a snapshot of every controller created so far
func (r *SessionRegistry) Controllers() []*SessionController {
	r.mu.Lock()
	defer r.mu.Unlock()

	controllers := make([]*SessionController, 0, len(r.controllers))
	for _, c := range r.controllers {
		controllers = append(controllers, c)
	}
	return controllers
}

// SessionReaper ends sessions that stayed active longer than a maximum duration,
// typically because the client went away without ending them
type SessionReaper struct {
	registry *SessionRegistry
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSessionReaper creates a reaper sweeping the registry every interval
func NewSessionReaper(registry *SessionRegistry, maxAge, interval time.Duration, logger *zap.Logger) *SessionReaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionReaper{
		registry: registry,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep
func (r *SessionReaper) Start() {
	go r.loop()
	r.logger.Info("Session reaper started",
		zap.Duration("maxAge", r.maxAge),
		zap.Duration("interval", r.interval))
}

// Stop halts the sweep and waits for a running sweep to finish
func (r *SessionReaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		<-r.done
		r.logger.Info("Session reaper stopped")
	})
}

func (r *SessionReaper) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.Sweep(context.Background())
		}
	}
}

// Sweep ends every stale session and returns how many were ended
func (r *SessionReaper) Sweep(ctx context.Context) int {
	if r.maxAge <= 0 {
		return 0
	}

	ended := 0
	for _, controller := range r.registry.Controllers() {
		startedAt, active := controller.ActiveSince()
		if !active || r.now().Sub(startedAt) < r.maxAge {
			continue
		}

		r.logger.Info("Ending stale session",
			zap.String("userID", controller.UserID()),
			zap.Time("startedAt", startedAt))

		if _, err := controller.End(ctx); err != nil {
			r.logger.Error("Failed to end stale session", zap.String("userID", controller.UserID()), zap.Error(err))
		}
		ended++
	}
	return ended
}
