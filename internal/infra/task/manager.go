package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stylebot/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// Executor runs a task and returns its result reference.
type Executor func(ctx context.Context, task *Task) (string, error)

// Manager runs submitted tasks in the background with pluggable executors.
type Manager struct {
	mu sync.RWMutex

	repo      Repository
	executors map[string]Executor
	logger    *zap.Logger
	metrics   *metrics.Metrics
	config    *Config

	semaphore chan struct{}

	subscribers map[uuid.UUID]map[uint64]func(*Task)
	nextSubID   uint64

	runCtx    context.Context
	cancelRun context.CancelFunc
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Config contains manager configuration.
type Config struct {
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() *Config {
	return &Config{MaxConcurrent: 8}
}

// NewManager creates a new task manager.
func NewManager(repo Repository, logger *zap.Logger, config *Config, m *metrics.Metrics) *Manager {
	if config == nil || config.MaxConcurrent <= 0 {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		repo:        repo,
		executors:   make(map[string]Executor),
		logger:      logger.Named("task-manager"),
		metrics:     m,
		config:      config,
		semaphore:   make(chan struct{}, config.MaxConcurrent),
		subscribers: make(map[uuid.UUID]map[uint64]func(*Task)),
		runCtx:      runCtx,
		cancelRun:   cancel,
		stopCh:      make(chan struct{}),
	}
}

// Start re-queues tasks left unfinished by a previous run. Their credit was
// already consumed, so they are executed again rather than dropped.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.Info("starting task manager", zap.Int("max_concurrent", m.config.MaxConcurrent))

	tasks, err := m.repo.ListUnfinished(ctx)
	if err != nil {
		return fmt.Errorf("recover unfinished tasks: %w", err)
	}
	if len(tasks) > 0 {
		m.logger.Info("recovering unfinished tasks", zap.Int("count", len(tasks)))
	}

	for _, task := range tasks {
		if task.Status == StatusRunning {
			task.Status = StatusPending
			task.UpdatedAt = time.Now()
			if err := m.repo.Update(ctx, task); err != nil {
				m.logger.Warn("failed to reset task status",
					zap.String("task_id", task.ID.String()),
					zap.Error(err))
				continue
			}
		}
		m.wg.Add(1)
		go m.executeTask(task)
	}
	return nil
}

// Stop refuses new work and waits for queued and running tasks. If ctx
// expires first, executors are cancelled and Stop waits for them to return.
func (m *Manager) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() {
		m.logger.Info("stopping task manager")
		m.mu.Lock()
		close(m.stopCh)
		m.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancelRun()
		m.logger.Info("task manager stopped")
		return nil
	case <-ctx.Done():
		m.cancelRun()
		<-done
		m.logger.Warn("task manager stopped with cancelled tasks")
		return ctx.Err()
	}
}

// RegisterExecutor registers an executor for a task kind.
func (m *Manager) RegisterExecutor(kind string, executor Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executors[kind] = executor
	m.logger.Debug("registered executor", zap.String("kind", kind))
}

// Submit records a new task and starts it in the background.
func (m *Manager) Submit(ctx context.Context, userID int64, req *SubmitRequest) (*Task, error) {
	m.mu.RLock()
	select {
	case <-m.stopCh:
		m.mu.RUnlock()
		return nil, ErrManagerStopped
	default:
		m.wg.Add(1)
	}
	m.mu.RUnlock()

	now := time.Now()
	task := &Task{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      req.Kind,
		Status:    StatusPending,
		Input:     req.Input,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.repo.Create(ctx, task); err != nil {
		m.wg.Done()
		return nil, fmt.Errorf("create task: %w", err)
	}

	m.logger.Debug("task submitted",
		zap.String("task_id", task.ID.String()),
		zap.String("kind", task.Kind),
		zap.Int64("user_id", userID))

	go m.executeTask(task.clone())

	return task, nil
}

// Get retrieves a task by ID.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	return m.repo.Get(ctx, id)
}

// List lists tasks for a user.
func (m *Manager) List(ctx context.Context, userID int64, filter *Filter) ([]*Task, error) {
	if filter == nil {
		filter = &Filter{}
	}
	filter.UserID = &userID
	return m.repo.List(ctx, filter)
}

// Subscribe registers callback for updates of task id and returns an
// unsubscribe function.
func (m *Manager) Subscribe(id uuid.UUID, callback func(*Task)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSubID++
	subID := m.nextSubID
	if m.subscribers[id] == nil {
		m.subscribers[id] = make(map[uint64]func(*Task))
	}
	m.subscribers[id][subID] = callback

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers[id], subID)
		if len(m.subscribers[id]) == 0 {
			delete(m.subscribers, id)
		}
	}
}

func (m *Manager) executeTask(task *Task) {
	defer m.wg.Done()

	m.semaphore <- struct{}{}
	defer func() { <-m.semaphore }()

	ctx := m.runCtx
	m.metrics.TaskStarted()
	defer m.metrics.TaskFinished()

	m.mu.RLock()
	executor, ok := m.executors[task.Kind]
	m.mu.RUnlock()

	if !ok {
		m.failTask(ctx, task, "unknown_kind", "no executor registered for kind: "+task.Kind)
		return
	}

	task.Status = StatusRunning
	task.UpdatedAt = time.Now()
	if err := m.repo.Update(ctx, task); err != nil {
		m.logger.Error("failed to update task status",
			zap.String("task_id", task.ID.String()),
			zap.Error(err))
	}
	m.notifySubscribers(task)

	result, err := m.run(ctx, executor, task)
	if err != nil {
		m.failTask(ctx, task, "execution_failed", err.Error())
		return
	}

	now := time.Now()
	task.Status = StatusCompleted
	task.Result = result
	task.CompletedAt = &now
	task.UpdatedAt = now

	if err := m.repo.Update(context.WithoutCancel(ctx), task); err != nil {
		m.logger.Error("failed to update completed task",
			zap.String("task_id", task.ID.String()),
			zap.Error(err))
	}

	m.logger.Debug("task completed", zap.String("task_id", task.ID.String()))
	m.notifySubscribers(task)
}

func (m *Manager) run(ctx context.Context, executor Executor, task *Task) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return executor(ctx, task.clone())
}

func (m *Manager) failTask(ctx context.Context, task *Task, code, message string) {
	now := time.Now()
	task.Status = StatusFailed
	task.Error = &Error{Code: code, Message: message}
	task.CompletedAt = &now
	task.UpdatedAt = now

	if err := m.repo.Update(context.WithoutCancel(ctx), task); err != nil {
		m.logger.Error("failed to update failed task",
			zap.String("task_id", task.ID.String()),
			zap.Error(err))
	}

	m.logger.Warn("task failed",
		zap.String("task_id", task.ID.String()),
		zap.String("code", code),
		zap.String("message", message))
	m.notifySubscribers(task)
}

func (m *Manager) notifySubscribers(task *Task) {
	m.mu.RLock()
	subs := make([]func(*Task), 0, len(m.subscribers[task.ID]))
	for _, sub := range m.subscribers[task.ID] {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub(task.clone())
	}
}
