package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/eventstore"
)

// Handler processes one committed event. Returning nil acknowledges the
// event and advances the subscriber's checkpoint; returning an error leaves
// the checkpoint in place so the event is delivered again. Handlers must
// therefore be idempotent.
type Handler func(ctx context.Context, envelope eventstore.Envelope) error

// Manager delivers committed events of an aggregate type to named
// subscribers, at least once, in sequence order, with a durable checkpoint
// per subscriber. Each subscriber runs on its own polling worker.
type Manager struct {
	store        eventstore.Store
	checkpoints  CheckpointStore
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int

	mu            sync.Mutex
	subscriptions []subscriptionSpec
	started       bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

type subscriptionSpec struct {
	aggregateType string
	name          string
	handler       Handler
}

// NewManager creates a subscription manager over the given store.
func NewManager(store eventstore.Store, checkpoints CheckpointStore, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Manager {
	return &Manager{
		store:        store,
		checkpoints:  checkpoints,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Subscribe registers a named subscriber for one aggregate type. All
// subscribers must be registered before Start; the name keys the durable
// checkpoint and must be stable across restarts.
func (m *Manager) Subscribe(aggregateType, name string, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.New("cannot subscribe after the manager has started")
	}
	for _, spec := range m.subscriptions {
		if spec.name == name {
			return fmt.Errorf("subscriber %q is already registered", name)
		}
	}

	m.subscriptions = append(m.subscriptions, subscriptionSpec{
		aggregateType: aggregateType,
		name:          name,
		handler:       handler,
	})
	return nil
}

// Start launches one worker per registered subscriber. Workers run until
// Close is called or the given context is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.New("subscription manager already started")
	}
	m.started = true

	workerCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, spec := range m.subscriptions {
		m.wg.Add(1)
		go func(spec subscriptionSpec) {
			defer m.wg.Done()
			m.runWorker(workerCtx, spec)
		}(spec)
	}

	m.logger.Info("subscription manager started", zap.Int("subscribers", len(m.subscriptions)))
	return nil
}

// Close stops all workers and waits for them to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, spec subscriptionSpec) {
	logger := m.logger.With(
		zap.String("subscriber", spec.name),
		zap.String("aggregate_type", spec.aggregateType),
	)
	logger.Info("subscriber started")

	for {
		delivered, err := m.deliverBatch(ctx, spec)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("subscriber stopped")
				return
			}
			logger.Error("failed to deliver batch", zap.Error(err))
		}

		// Idle or errored: wait out the poll interval before the next read.
		if delivered == 0 || err != nil {
			select {
			case <-ctx.Done():
				logger.Info("subscriber stopped")
				return
			case <-time.After(m.pollInterval):
			}
		}
	}
}

// deliverBatch reads events past the checkpoint and hands them to the
// handler one by one, saving the checkpoint after each acknowledged event.
func (m *Manager) deliverBatch(ctx context.Context, spec subscriptionSpec) (int, error) {
	checkpoint, err := m.checkpoints.Get(ctx, spec.name)
	if err != nil {
		return 0, err
	}

	envelopes, err := m.store.ReadAfter(ctx, spec.aggregateType, checkpoint, m.batchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, envelope := range envelopes {
		if err := m.deliver(ctx, spec, envelope); err != nil {
			return delivered, err
		}
		if err := m.checkpoints.Save(ctx, spec.name, envelope.Sequence); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

// deliver retries the handler with a linear backoff until it acknowledges
// the event or the context ends. The subscriber never skips an event: a
// poison event blocks its stream, which is preferable to silently losing a
// saga step.
func (m *Manager) deliver(ctx context.Context, spec subscriptionSpec, envelope eventstore.Envelope) error {
	for attempt := 1; ; attempt++ {
		err := spec.handler(ctx, envelope)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.logger.Warn("handler failed, will retry",
			zap.String("subscriber", spec.name),
			zap.String("event", envelope.Name),
			zap.Int64("sequence", envelope.Sequence),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		backoff := time.Duration(attempt) * m.pollInterval
		if backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
