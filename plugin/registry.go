package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onWelcomeGranted       []OnWelcomeGranted
	onBalanceChanged       []OnBalanceChanged
	onReservationCreated   []OnReservationCreated
	onReservationConfirmed []OnReservationConfirmed
	onReservationRefunded  []OnReservationRefunded
	onTrialGranted         []OnTrialGranted
	onJobStateChanged      []OnJobStateChanged
	onArtifactCreated      []OnArtifactCreated
	onArtifactsEvicted     []OnArtifactsEvicted
	onBlobWriteFailed      []OnBlobWriteFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnWelcomeGranted); ok {
		r.onWelcomeGranted = append(r.onWelcomeGranted, v)
	}
	if v, ok := p.(OnBalanceChanged); ok {
		r.onBalanceChanged = append(r.onBalanceChanged, v)
	}
	if v, ok := p.(OnReservationCreated); ok {
		r.onReservationCreated = append(r.onReservationCreated, v)
	}
	if v, ok := p.(OnReservationConfirmed); ok {
		r.onReservationConfirmed = append(r.onReservationConfirmed, v)
	}
	if v, ok := p.(OnReservationRefunded); ok {
		r.onReservationRefunded = append(r.onReservationRefunded, v)
	}
	if v, ok := p.(OnTrialGranted); ok {
		r.onTrialGranted = append(r.onTrialGranted, v)
	}
	if v, ok := p.(OnJobStateChanged); ok {
		r.onJobStateChanged = append(r.onJobStateChanged, v)
	}
	if v, ok := p.(OnArtifactCreated); ok {
		r.onArtifactCreated = append(r.onArtifactCreated, v)
	}
	if v, ok := p.(OnArtifactsEvicted); ok {
		r.onArtifactsEvicted = append(r.onArtifactsEvicted, v)
	}
	if v, ok := p.(OnBlobWriteFailed); ok {
		r.onBlobWriteFailed = append(r.onBlobWriteFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnWelcomeGranted)(nil)).Elem(), "OnWelcomeGranted")
	checkInterface(reflect.TypeOf((*OnBalanceChanged)(nil)).Elem(), "OnBalanceChanged")
	checkInterface(reflect.TypeOf((*OnReservationCreated)(nil)).Elem(), "OnReservationCreated")
	checkInterface(reflect.TypeOf((*OnReservationConfirmed)(nil)).Elem(), "OnReservationConfirmed")
	checkInterface(reflect.TypeOf((*OnReservationRefunded)(nil)).Elem(), "OnReservationRefunded")
	checkInterface(reflect.TypeOf((*OnTrialGranted)(nil)).Elem(), "OnTrialGranted")
	checkInterface(reflect.TypeOf((*OnJobStateChanged)(nil)).Elem(), "OnJobStateChanged")
	checkInterface(reflect.TypeOf((*OnArtifactCreated)(nil)).Elem(), "OnArtifactCreated")
	checkInterface(reflect.TypeOf((*OnArtifactsEvicted)(nil)).Elem(), "OnArtifactsEvicted")
	checkInterface(reflect.TypeOf((*OnBlobWriteFailed)(nil)).Elem(), "OnBlobWriteFailed")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, svc interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, svc)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWelcomeGranted emits a welcome grant event.
func (r *Registry) EmitWelcomeGranted(ctx context.Context, accountID string, signedIn bool, amount int64) {
	r.mu.RLock()
	plugins := r.onWelcomeGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWelcomeGranted(ctx, accountID, signedIn, amount)
		}); err != nil {
			r.logger.Warn("plugin OnWelcomeGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBalanceChanged emits a balance change event.
func (r *Registry) EmitBalanceChanged(ctx context.Context, accountID string, signedIn bool, before, after int64) {
	r.mu.RLock()
	plugins := r.onBalanceChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBalanceChanged(ctx, accountID, signedIn, before, after)
		}); err != nil {
			r.logger.Warn("plugin OnBalanceChanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReservationCreated emits a reservation created event.
func (r *Registry) EmitReservationCreated(ctx context.Context, reservation interface{}) {
	r.mu.RLock()
	plugins := r.onReservationCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReservationCreated(ctx, reservation)
		}); err != nil {
			r.logger.Warn("plugin OnReservationCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReservationConfirmed emits a reservation confirmed event.
func (r *Registry) EmitReservationConfirmed(ctx context.Context, reservation interface{}) {
	r.mu.RLock()
	plugins := r.onReservationConfirmed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReservationConfirmed(ctx, reservation)
		}); err != nil {
			r.logger.Warn("plugin OnReservationConfirmed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReservationRefunded emits a reservation refunded event.
func (r *Registry) EmitReservationRefunded(ctx context.Context, reservation interface{}, amount int64, reason string) {
	r.mu.RLock()
	plugins := r.onReservationRefunded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReservationRefunded(ctx, reservation, amount, reason)
		}); err != nil {
			r.logger.Warn("plugin OnReservationRefunded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTrialGranted emits a trial granted event.
func (r *Registry) EmitTrialGranted(ctx context.Context, accountID string) {
	r.mu.RLock()
	plugins := r.onTrialGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTrialGranted(ctx, accountID)
		}); err != nil {
			r.logger.Warn("plugin OnTrialGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitJobStateChanged emits a job state transition event.
func (r *Registry) EmitJobStateChanged(ctx context.Context, j interface{}, from, to string) {
	r.mu.RLock()
	plugins := r.onJobStateChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnJobStateChanged(ctx, j, from, to)
		}); err != nil {
			r.logger.Warn("plugin OnJobStateChanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitArtifactCreated emits an artifact created event.
func (r *Registry) EmitArtifactCreated(ctx context.Context, a interface{}) {
	r.mu.RLock()
	plugins := r.onArtifactCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnArtifactCreated(ctx, a)
		}); err != nil {
			r.logger.Warn("plugin OnArtifactCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitArtifactsEvicted emits an expiry sweep event.
func (r *Registry) EmitArtifactsEvicted(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onArtifactsEvicted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnArtifactsEvicted(ctx, count, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnArtifactsEvicted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBlobWriteFailed emits a background blob write failure event.
func (r *Registry) EmitBlobWriteFailed(ctx context.Context, blobKey string, writeErr error) {
	r.mu.RLock()
	plugins := r.onBlobWriteFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBlobWriteFailed(ctx, blobKey, writeErr)
		}); err != nil {
			r.logger.Warn("plugin OnBlobWriteFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the processing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
