// Package sync implements the synchronization engine that keeps the in-memory
// view of installed packages consistent with the package-management host.
//
// Change notifications from any goroutine are coalesced by a batching queue;
// the engine translates each delivered batch into the minimal set of project
// rescans, performs the host queries on the coordinating dispatcher, and
// publishes fresh immutable snapshots to the project store. Readers never
// block and never observe a half-updated project.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/forgeide/pkgsync/internal/domain/project"
	"github.com/forgeide/pkgsync/internal/domain/sources"
	"github.com/forgeide/pkgsync/internal/host"
	"github.com/forgeide/pkgsync/internal/infrastructure/batch"
	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
	"github.com/forgeide/pkgsync/internal/infrastructure/monitoring"
)

// State is the engine lifecycle state.
type State int32

const (
	// StateDisabled means host services were unavailable at startup. No
	// queue exists and all queries answer conservative defaults.
	StateDisabled State = iota
	// StateIdle means the engine is listening for change events.
	StateIdle
	// StateProcessing means a batch is being applied.
	StateProcessing
	// StateDisposed is terminal; in-flight work is cancelled cooperatively.
	StateDisposed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// WorkItem is one unit of change accumulated during a quiescence window. A
// solution-level item dominates the whole batch: project granularity is
// dropped in favor of a full rescan.
type WorkItem struct {
	SolutionChanged bool
	Project         project.ID
}

// Deps are the collaborators the engine requires. Packages, Solution,
// Sources, and Manager are only called from inside Dispatcher.Do.
type Deps struct {
	Packages   host.PackageQuery
	Solution   host.SolutionView
	Sources    host.SourceHost
	Manager    host.PackageManager
	Dispatcher host.Dispatcher
	Sink       host.NotificationSink

	Log     *logging.Logger
	Metrics *monitoring.Metrics

	// Window is the quiescence interval for batching change events.
	Window time.Duration
}

// Engine owns the project store, the package-source cache, and the batching
// queue, and orchestrates refreshes against the host.
type Engine struct {
	deps  Deps
	store *project.Store
	cache *sources.Cache
	hub   *Hub

	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32
	queue *batch.Queue[WorkItem]
}

// NewEngine creates a disabled engine. EnableService wires the queue and
// transitions it to idle; until then all queries answer defaults.
func NewEngine(ctx context.Context, deps Deps) *Engine {
	if deps.Window <= 0 {
		deps.Window = time.Second
	}
	ctx, cancel := context.WithCancel(ctx)

	e := &Engine{
		deps:   deps,
		store:  project.NewStore(),
		hub:    NewHub(),
		ctx:    ctx,
		cancel: cancel,
	}
	e.cache = sources.NewCache(ctx, e.fetchSources, deps.Log)
	e.cache.OnChanged(func() {
		if deps.Metrics != nil {
			deps.Metrics.SourceRefreshes.Inc()
		}
		e.hub.Publish(Event{Type: EventSourcesChanged})
	})
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Events returns the hub engine notifications are published to.
func (e *Engine) Events() *Hub {
	return e.hub
}

// EnableService wires the batching queue and moves the engine to idle. It is
// expected to run once during startup. Without the host collaborators the
// engine stays disabled and only serves defaults.
func (e *Engine) EnableService() error {
	if s := e.State(); s != StateDisabled {
		return fmt.Errorf("cannot enable engine in state %s", s)
	}
	if e.deps.Packages == nil || e.deps.Solution == nil || e.deps.Dispatcher == nil {
		e.deps.Log.Warn("host services unavailable, engine stays disabled")
		return nil
	}

	e.queue = batch.NewQueue(e.ctx, e.deps.Window, e.processBatch, e.deps.Log)
	e.state.Store(int32(StateIdle))
	e.deps.Log.Info("synchronization engine enabled",
		zap.Duration("window", e.deps.Window))
	return nil
}

// StartWorking enqueues the initial full-solution scan. Call once after
// EnableService.
func (e *Engine) StartWorking() {
	if e.State() == StateDisabled || e.State() == StateDisposed {
		return
	}
	e.queue.Add(WorkItem{SolutionChanged: true})
}

// HandleChange is the engine's change-notification entry point. Safe from any
// goroutine; never blocks.
func (e *Engine) HandleChange(event host.ChangeEvent) {
	switch event.Kind {
	case host.EventProjectAdded, host.EventProjectChanged, host.EventProjectRemoved:
		e.addWork(WorkItem{Project: event.Project})
	case host.EventSolutionLoaded, host.EventSolutionChanged:
		e.addWork(WorkItem{SolutionChanged: true})
	case host.EventSourcesChanged:
		e.cache.Invalidate()
	default:
		// Kinds the engine does not care about.
	}
}

func (e *Engine) addWork(item WorkItem) {
	if e.State() == StateDisabled || e.State() == StateDisposed {
		return
	}
	e.queue.Add(item)
}

// Close moves the engine to disposed and cancels in-flight work. Safe to call
// more than once.
func (e *Engine) Close() {
	e.state.Store(int32(StateDisposed))
	if e.queue != nil {
		e.queue.Close()
	}
	e.cancel()
}

// processBatch translates one delivered batch into project rescans. Runs on
// the queue's processor goroutine; at most one invocation is in flight.
func (e *Engine) processBatch(ctx context.Context, batchID string, items []WorkItem) {
	if e.State() == StateDisposed {
		return
	}
	e.state.Store(int32(StateProcessing))
	defer func() {
		if e.State() == StateProcessing {
			e.state.Store(int32(StateIdle))
		}
	}()

	started := time.Now()
	log := e.deps.Log.With(zap.String("batch_id", batchID))

	targets, err := e.targetProjects(ctx, items)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("failed to enumerate solution projects", zap.Error(err))
		}
		return
	}

	log.Info("processing batch",
		zap.Int("items", len(items)),
		zap.Int("targets", len(targets)))

	for _, id := range targets {
		if ctx.Err() != nil {
			log.Info("batch cancelled", zap.String("project", string(id)))
			return
		}
		e.scanProject(ctx, log, id)
	}

	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordBatch(len(items), time.Since(started))
		e.deps.Metrics.ProjectsTracked.Set(float64(e.store.Len()))
	}
	e.hub.Publish(Event{Type: EventBatchComplete, BatchID: batchID})
}

// targetProjects computes the distinct set of projects a batch denotes. A
// solution-level item widens the set to every project in the live solution
// plus every tracked project, so projects that left the solution get evicted
// by their scan.
func (e *Engine) targetProjects(ctx context.Context, items []WorkItem) ([]project.ID, error) {
	solutionChanged := false
	seen := make(map[project.ID]struct{})
	var targets []project.ID

	add := func(id project.ID) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	for _, item := range items {
		if item.SolutionChanged {
			solutionChanged = true
			break
		}
	}

	if !solutionChanged {
		for _, item := range items {
			if item.Project != "" {
				add(item.Project)
			}
		}
		return targets, nil
	}

	var current []project.ID
	err := e.deps.Dispatcher.Do(ctx, func(ctx context.Context) error {
		var err error
		current, err = e.deps.Solution.CurrentProjects(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, id := range current {
		add(id)
	}
	for _, id := range e.store.IDs() {
		add(id)
	}
	return targets, nil
}

// scanProject refreshes one project's state from the host. Unsupported or
// unresolvable projects are evicted; a failed query marks the project
// disabled; cancellation leaves the prior state untouched.
func (e *Engine) scanProject(ctx context.Context, log *logging.Logger, id project.ID) {
	started := time.Now()

	var refs []host.PackageRef
	evict := false
	err := e.deps.Dispatcher.Do(ctx, func(ctx context.Context) error {
		lang, ok := e.deps.Solution.ProjectLanguage(ctx, id)
		if !ok || !lang.Supported() {
			evict = true
			return nil
		}
		native, ok := e.deps.Solution.ResolveNativeID(ctx, id)
		if !ok {
			evict = true
			return nil
		}
		var err error
		refs, err = e.deps.Packages.InstalledPackages(ctx, native)
		return err
	})

	switch {
	case evict:
		e.store.Remove(id)
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordScan("evicted", time.Since(started))
		}
		e.hub.Publish(Event{Type: EventProjectRemoved, Project: string(id)})

	case err == nil:
		packages := make(map[string][]string, len(refs))
		for _, ref := range refs {
			packages[ref.ID] = append(packages[ref.ID], ref.Version)
		}
		e.store.Set(id, project.NewState(true, packages))
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordScan("success", time.Since(started))
		}
		e.hub.Publish(Event{Type: EventProjectSynced, Project: string(id)})

	case errors.Is(err, context.Canceled):
		// Aborted mid-scan; the prior state stands.

	default:
		log.Warn("project scan failed, marking disabled",
			zap.String("project", string(id)),
			zap.Error(err))
		e.store.Set(id, project.NewDisabled())
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordScan("failure", time.Since(started))
		}
		e.hub.Publish(Event{Type: EventProjectSynced, Project: string(id)})
	}
}

// fetchSources queries the host for the configured package sources on the
// coordinating dispatcher.
func (e *Engine) fetchSources(ctx context.Context) ([]sources.Source, error) {
	if e.deps.Sources == nil || e.deps.Dispatcher == nil {
		return nil, nil
	}
	var list []sources.Source
	err := e.deps.Dispatcher.Do(ctx, func(ctx context.Context) error {
		var err error
		list, err = e.deps.Sources.Sources(ctx)
		return err
	})
	if err != nil && e.deps.Metrics != nil && !errors.Is(err, context.Canceled) {
		e.deps.Metrics.SourceFetchErrors.Inc()
	}
	return list, err
}

// Install installs a package into a project through the host. Failures are
// surfaced through the notification sink; a successful install enqueues a
// rescan so the store catches up.
func (e *Engine) Install(ctx context.Context, id project.ID, name, version string) error {
	err := e.manage(ctx, id, func(ctx context.Context, native host.NativeID) error {
		return e.deps.Manager.Install(ctx, native, name, version)
	})
	if err != nil {
		e.report(ctx, fmt.Sprintf("failed to install package %s: %v", name, err))
		return err
	}
	e.addWork(WorkItem{Project: id})
	return nil
}

// Uninstall removes a package from a project through the host. Failure and
// rescan semantics match Install.
func (e *Engine) Uninstall(ctx context.Context, id project.ID, name string) error {
	err := e.manage(ctx, id, func(ctx context.Context, native host.NativeID) error {
		return e.deps.Manager.Uninstall(ctx, native, name)
	})
	if err != nil {
		e.report(ctx, fmt.Sprintf("failed to uninstall package %s: %v", name, err))
		return err
	}
	e.addWork(WorkItem{Project: id})
	return nil
}

func (e *Engine) manage(ctx context.Context, id project.ID, op func(context.Context, host.NativeID) error) error {
	if e.State() == StateDisabled || e.State() == StateDisposed {
		return fmt.Errorf("engine is %s", e.State())
	}
	if e.deps.Manager == nil {
		return errors.New("host package manager unavailable")
	}
	return e.deps.Dispatcher.Do(ctx, func(ctx context.Context) error {
		native, ok := e.deps.Solution.ResolveNativeID(ctx, id)
		if !ok {
			return fmt.Errorf("project %s cannot be resolved", id)
		}
		return op(ctx, native)
	})
}

func (e *Engine) report(ctx context.Context, message string) {
	if e.deps.Sink == nil {
		return
	}
	e.deps.Sink.Report(ctx, message, host.SeverityError)
}

// IsEnabled reports whether a project can be managed. Unscanned projects
// default to enabled. Any goroutine, never blocks.
func (e *Engine) IsEnabled(id project.ID) bool {
	return e.store.Enabled(id)
}

// Installed reports whether a project has the named package installed.
func (e *Engine) Installed(id project.ID, name string) bool {
	return e.store.Installed(id, name)
}

// InstalledVersions aggregates the installed versions of a package across all
// tracked projects, deduplicated, newest-looking first.
func (e *Engine) InstalledVersions(name string) []string {
	return e.store.InstalledVersions(name)
}

// ProjectsWith returns the projects with the named package installed at the
// given version.
func (e *Engine) ProjectsWith(name, version string) []project.ID {
	return e.store.ProjectsWith(name, version)
}

// Project returns the cached state for one project, if any.
func (e *Engine) Project(id project.ID) (*project.State, bool) {
	return e.store.Get(id)
}

// Snapshot returns a point-in-time view of every tracked project.
func (e *Engine) Snapshot() map[project.ID]*project.State {
	return e.store.Snapshot()
}

// Sources returns the cached package-source list without blocking; empty
// until the first computation completes.
func (e *Engine) Sources() []sources.Source {
	return e.cache.TryRead()
}

// RefreshSources discards the cached source list and recomputes it.
func (e *Engine) RefreshSources() {
	e.cache.Invalidate()
}
