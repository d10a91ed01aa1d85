package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/mixpolicy/pkg/policy/engine"
	"mercator-hq/mixpolicy/pkg/policy/mix"
	"mercator-hq/mixpolicy/pkg/policy/parcel"
	"mercator-hq/mixpolicy/pkg/policy/source"
	"mercator-hq/mixpolicy/pkg/store"
)

// Registry operation outcomes reported to Metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
)

// Config configures a Manager.
type Config struct {
	// Registry bounds the mix registry.
	Registry RegistryConfig

	// MixFile is an optional YAML mix file registered under a random owner
	// token that never leaves the process and has no session.
	MixFile string

	// DebounceInterval is the quiet period before a changed mix file is
	// reloaded.
	DebounceInterval time.Duration

	// NotifyBuffer is the capacity of the activity event channel.
	NotifyBuffer int

	// MailboxSize is the number of activity events queued per owner.
	MailboxSize int

	// JournalTimeout bounds each journal write.
	JournalTimeout time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		Registry:         DefaultRegistryConfig(),
		DebounceInterval: 100 * time.Millisecond,
		NotifyBuffer:     256,
		MailboxSize:      64,
		JournalTimeout:   2 * time.Second,
	}
}

// Metrics receives manager telemetry.
type Metrics interface {
	engine.Recorder
	RecordRegistryOperation(operation, outcome string)
	SetRegisteredMixes(n int)
	SetActiveStreams(n int)
	RecordNotification(outcome string)
}

// Options carries the optional collaborators of a Manager.
type Options struct {
	Logger  *slog.Logger
	Journal store.Journal
	Metrics Metrics

	// Notifiers receive every activity event in addition to the owner
	// mailboxes, the log and the journal.
	Notifiers []Notifier
}

// Manager coordinates the mix registry, the evaluator and activity
// tracking. Owners open a session to obtain a token, register mixes with
// it and lose every mix when the session closes.
type Manager struct {
	config     Config
	logger     *slog.Logger
	registry   *Registry
	evaluator  *engine.Evaluator
	tracker    *ActivityTracker
	mailbox    *Mailbox
	dispatcher *Dispatcher
	journal    store.Journal
	metrics    Metrics
	fileToken  mix.Token

	// mu serializes mutations with activity tracking so transitions are
	// reported in registry order.
	mu            sync.Mutex
	owners        map[mix.Token]time.Time
	streams       map[StreamHandle]mix.Stream
	lastReload    time.Time
	lastReloadErr error

	watchMu sync.Mutex
	watcher *FileWatcher
}

// NewManager creates a manager and starts its notification dispatcher.
func NewManager(config Config, opts Options) *Manager {
	def := DefaultConfig()
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = def.DebounceInterval
	}
	if config.JournalTimeout <= 0 {
		config.JournalTimeout = def.JournalTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var recorder engine.Recorder
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}

	m := &Manager{
		config:    config,
		logger:    logger.With("component", "policy.manager"),
		registry:  NewRegistry(config.Registry),
		evaluator: engine.NewEvaluator(logger, recorder),
		tracker:   NewActivityTracker(),
		mailbox:   NewMailbox(config.MailboxSize),
		journal:   opts.Journal,
		metrics:   opts.Metrics,
		fileToken: mix.NewToken(),
		owners:    make(map[mix.Token]time.Time),
		streams:   make(map[StreamHandle]mix.Stream),
	}

	notifiers := MultiNotifier{m.mailbox, NewLogNotifier(logger)}
	if opts.Journal != nil {
		notifiers = append(notifiers, NewJournalNotifier(opts.Journal))
	}
	notifiers = append(notifiers, opts.Notifiers...)

	var onOutcome func(string)
	if opts.Metrics != nil {
		onOutcome = opts.Metrics.RecordNotification
	}
	m.dispatcher = NewDispatcher(notifiers, config.NotifyBuffer, logger, onOutcome)

	return m
}

// OpenSession issues a new owner token.
func (m *Manager) OpenSession() mix.Token {
	token := mix.NewToken()

	m.mu.Lock()
	m.owners[token] = time.Now()
	m.mu.Unlock()

	m.mailbox.Open(token)
	m.logger.Debug("session opened", "owner", token.String())
	return token
}

// HasSession reports whether token is an open session.
func (m *Manager) HasSession(token mix.Token) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.owners[token]
	return ok
}

// CloseSession invalidates token: every mix it owns is unregistered and
// its pending events are discarded. It returns the number of removed mixes.
func (m *Manager) CloseSession(ctx context.Context, token mix.Token) (int, error) {
	var batch journalBatch
	defer m.flush(ctx, &batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.owners[token]; !ok {
		return 0, fmt.Errorf("close session: %w: unknown owner token", mix.ErrNotFound)
	}

	removed := m.invalidateLocked(&batch, token)
	delete(m.owners, token)
	m.mailbox.Close(token)

	m.logger.Info("session closed", "owner", token.String(), "removed_mixes", removed)
	return removed, nil
}

// InvalidateOwner unregisters every mix owned by token without closing its
// session.
func (m *Manager) InvalidateOwner(ctx context.Context, token mix.Token) int {
	var batch journalBatch
	defer m.flush(ctx, &batch)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidateLocked(&batch, token)
}

func (m *Manager) invalidateLocked(batch *journalBatch, token mix.Token) int {
	removed := m.registry.InvalidateOwner(token)
	if len(removed) == 0 {
		return 0
	}

	m.applyLocked(batch, Change{Removed: removed}, store.OpInvalidate, "")
	m.recordOperation("invalidate", nil)
	return len(removed)
}

// Register adds mixes on behalf of token as one batch. It returns the
// registration ids in order.
func (m *Manager) Register(ctx context.Context, token mix.Token, mixes []*mix.Mix) ([]string, error) {
	var batch journalBatch
	defer m.flush(ctx, &batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSessionLocked(token); err != nil {
		m.recordOperation("register", err)
		return nil, err
	}

	owned := make([]*mix.Mix, len(mixes))
	ids := make([]string, len(mixes))
	for i, mx := range mixes {
		if mx == nil {
			err := registryError("add", "", mix.ErrInvalidCriteria, "mix %d is nil", i)
			m.recordOperation("register", err)
			return nil, err
		}
		owned[i] = mx.Clone()
		owned[i].Token = token
		ids[i] = mx.RegistrationID
	}

	if err := m.registry.AddAll(owned); err != nil {
		m.recordOperation("register", err)
		m.logger.Warn("mix registration rejected", "owner", token.String(), "count", len(mixes), "error", err)
		return nil, err
	}

	m.applyLocked(&batch, Change{Added: owned}, "", store.OpRegister)
	m.recordOperation("register", nil)
	m.logger.Info("mixes registered", "owner", token.String(), "ids", ids)
	return ids, nil
}

// RegisterParcel decodes a parcel mix list and registers it.
func (m *Manager) RegisterParcel(ctx context.Context, token mix.Token, data []byte) ([]string, error) {
	mixes, err := parcel.UnmarshalMixes(data)
	if err != nil {
		m.recordOperation("register", err)
		return nil, err
	}
	return m.Register(ctx, token, mixes)
}

// Unregister removes the mix with the given id on behalf of token.
func (m *Manager) Unregister(ctx context.Context, token mix.Token, id string) error {
	var batch journalBatch
	defer m.flush(ctx, &batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSessionLocked(token); err != nil {
		m.recordOperation("unregister", err)
		return err
	}
	removed, err := m.registry.Remove(id, token)
	if err != nil {
		m.recordOperation("unregister", err)
		return err
	}

	m.applyLocked(&batch, Change{Removed: []*mix.Mix{removed}}, store.OpUnregister, "")
	m.recordOperation("unregister", nil)
	m.logger.Info("mix unregistered", "registration_id", id, "owner", token.String())
	return nil
}

// Update replaces the mix with the given id on behalf of token.
func (m *Manager) Update(ctx context.Context, token mix.Token, id string, mx *mix.Mix) error {
	if mx == nil {
		err := registryError("update", id, mix.ErrInvalidCriteria, "mix cannot be nil")
		m.recordOperation("update", err)
		return err
	}

	var batch journalBatch
	defer m.flush(ctx, &batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSessionLocked(token); err != nil {
		m.recordOperation("update", err)
		return err
	}
	change, err := m.registry.Update(id, token, mx)
	if err != nil {
		m.recordOperation("update", err)
		return err
	}

	m.applyLocked(&batch, change, store.OpUnregister, store.OpUpdate)
	m.recordOperation("update", nil)
	m.logger.Info("mix updated", "registration_id", id, "new_registration_id", mx.RegistrationID)
	return nil
}

// UpdateParcel decodes a single parcel mix and applies Update.
func (m *Manager) UpdateParcel(ctx context.Context, token mix.Token, id string, data []byte) error {
	mx, err := parcel.UnmarshalMix(data)
	if err != nil {
		m.recordOperation("update", err)
		return err
	}
	return m.Update(ctx, token, id, mx)
}

// Evaluate returns the routing decision for s without tracking it.
func (m *Manager) Evaluate(s mix.Stream) engine.Decision {
	var d engine.Decision
	m.registry.View(func(mixes []*mix.Mix) {
		d = m.evaluator.Evaluate(mixes, s)
	})
	return d
}

// StartStream routes a starting stream and tracks it until StopStream.
func (m *Manager) StartStream(ctx context.Context, s mix.Stream) (StreamHandle, engine.Decision) {
	var batch journalBatch
	defer m.flush(ctx, &batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.Evaluate(s)
	h := NewStreamHandle()
	m.streams[h] = s
	if d.Matched {
		m.emit(m.tracker.StreamStarted(h, d.RegistrationID))
	}

	m.queueDecision(&batch, h, store.StageStart, s, d.RegistrationID, d.Ambiguous)
	m.setActiveStreams()
	return h, d
}

// StopStream ends a stream started with StartStream.
func (m *Manager) StopStream(ctx context.Context, h StreamHandle) error {
	var batch journalBatch
	defer m.flush(ctx, &batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[h]
	if !ok {
		return fmt.Errorf("stop stream %q: %w", h, mix.ErrNotFound)
	}
	delete(m.streams, h)

	id, events, _ := m.tracker.StreamStopped(h)
	m.emit(events)

	m.queueDecision(&batch, h, store.StageStop, s, id, false)
	m.setActiveStreams()
	return nil
}

// Events drains the queued activity events of token.
func (m *Manager) Events(token mix.Token) ([]ActivityEvent, error) {
	if !m.HasSession(token) {
		return nil, fmt.Errorf("events: %w: unknown owner token", mix.ErrPermissionDenied)
	}
	return m.mailbox.Drain(token), nil
}

// Mixes returns copies of the registered mixes in registration order.
func (m *Manager) Mixes() []*mix.Mix {
	return m.registry.List()
}

// Mix returns a copy of the mix with the given id.
func (m *Manager) Mix(id string) (*mix.Mix, bool) {
	return m.registry.Get(id)
}

// State returns the activity state of the mix with the given id.
func (m *Manager) State(id string) mix.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.State(id)
}

// Snapshot returns copies of the registered mixes and their generation.
func (m *Manager) Snapshot() ([]*mix.Mix, uint64) {
	return m.registry.Snapshot()
}

// Generation returns the registry mutation counter.
func (m *Manager) Generation() uint64 {
	return m.registry.Generation()
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// FileToken returns the owner token of mixes loaded from the mix file.
func (m *Manager) FileToken() mix.Token {
	return m.fileToken
}

// LoadMixFile registers the mixes of the configured mix file, replacing
// the ones loaded previously. On failure the previous set stays active.
func (m *Manager) LoadMixFile(ctx context.Context) error {
	if m.config.MixFile == "" {
		return nil
	}

	start := time.Now()
	mixes, err := source.Load(m.config.MixFile)
	if err != nil {
		return m.reloadFailed(&ReloadError{FilePath: m.config.MixFile, Cause: err})
	}

	var batch journalBatch
	defer m.flush(ctx, &batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	change, err := m.registry.ReplaceOwned(m.fileToken, mixes)
	if err != nil {
		m.recordOperation("reload", err)
		m.lastReloadErr = &ReloadError{FilePath: m.config.MixFile, Cause: err}
		m.logger.Error("mix file reload rejected", "path", m.config.MixFile, "error", err)
		return m.lastReloadErr
	}

	m.applyLocked(&batch, change, store.OpUnregister, store.OpRegister)

	m.lastReload = time.Now()
	m.lastReloadErr = nil
	m.recordOperation("reload", nil)
	m.logger.Info("mix file loaded",
		"path", m.config.MixFile,
		"added", len(change.Added),
		"updated", len(change.Updated),
		"removed", len(change.Removed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (m *Manager) reloadFailed(err *ReloadError) error {
	m.mu.Lock()
	m.lastReloadErr = err
	m.mu.Unlock()

	m.recordOperation("reload", err)
	m.logger.Error("mix file reload failed", "path", err.FilePath, "error", err.Cause)
	return err
}

// LastReload returns the time and error of the last mix file load.
func (m *Manager) LastReload() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReload, m.lastReloadErr
}

// Watch reloads the mix file whenever it changes. It blocks until ctx is
// cancelled or Close is called.
func (m *Manager) Watch(ctx context.Context) error {
	if m.config.MixFile == "" {
		return fmt.Errorf("no mix file configured")
	}

	cfg := DefaultFileWatcherConfig()
	cfg.Path = m.config.MixFile
	cfg.DebounceInterval = m.config.DebounceInterval

	watcher, err := NewFileWatcher(cfg, m.logger)
	if err != nil {
		return err
	}

	m.watchMu.Lock()
	if m.watcher != nil {
		m.watchMu.Unlock()
		_ = watcher.Stop()
		return fmt.Errorf("mix file watcher already running")
	}
	m.watcher = watcher
	m.watchMu.Unlock()

	return watcher.Watch(ctx, func() error {
		return m.LoadMixFile(context.Background())
	})
}

// Close stops the watcher and the notification dispatcher. Queued events
// are delivered first.
func (m *Manager) Close() error {
	m.watchMu.Lock()
	w := m.watcher
	m.watcher = nil
	m.watchMu.Unlock()

	var err error
	if w != nil {
		err = w.Stop()
	}
	m.dispatcher.Close()
	return err
}

// checkSessionLocked admits only tokens of open sessions. The mix file
// token has no session, so remote callers can never act as the file owner.
func (m *Manager) checkSessionLocked(token mix.Token) error {
	if _, ok := m.owners[token]; !ok {
		return fmt.Errorf("%w: unknown owner token", mix.ErrPermissionDenied)
	}
	return nil
}

func (m *Manager) emit(events []ActivityEvent) {
	for _, ev := range events {
		m.dispatcher.Enqueue(ev)
	}
	if m.metrics != nil && len(events) > 0 {
		m.metrics.SetRegisteredMixes(m.registry.Count())
	}
}

func (m *Manager) setActiveStreams() {
	if m.metrics != nil {
		m.metrics.SetActiveStreams(len(m.streams))
	}
}

func (m *Manager) recordOperation(op string, err error) {
	if m.metrics == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeRejected
	}
	m.metrics.RecordRegistryOperation(op, outcome)
	m.metrics.SetRegisteredMixes(m.registry.Count())
}

// applyLocked feeds change to the activity tracker and queues its journal
// records: removed mixes under removeOp, added mixes under addOp and updated
// mixes as updates. Capture streams routed to a changed mix get an update
// record; they stay on an updated mix and fall back to default routing when
// their mix is removed.
func (m *Manager) applyLocked(batch *journalBatch, change Change, removeOp, addOp string) {
	type reroute struct {
		handle StreamHandle
		id     string
	}
	var rerouted []reroute
	for _, r := range change.Removed {
		for _, h := range m.tracker.Streams(r.RegistrationID) {
			rerouted = append(rerouted, reroute{handle: h})
		}
	}
	for _, u := range change.Updated {
		for _, h := range m.tracker.Streams(u.RegistrationID) {
			rerouted = append(rerouted, reroute{handle: h, id: u.RegistrationID})
		}
	}

	m.emit(m.tracker.Apply(change))

	for _, r := range change.Removed {
		m.queueRegistration(batch, removeOp, r, false)
	}
	for _, u := range change.Updated {
		m.queueRegistration(batch, store.OpUpdate, u, true)
	}
	for _, a := range change.Added {
		m.queueRegistration(batch, addOp, a, true)
	}
	for _, rr := range rerouted {
		if s := m.streams[rr.handle]; s.Class == mix.StreamCapture {
			m.queueDecision(batch, rr.handle, store.StageUpdate, s, rr.id, false)
		}
	}
}

// journalBatch holds the journal records of one operation. They are
// collected under m.mu and written by flush after the lock is released, so
// storage latency never extends the critical section. Records carry the time
// they were collected.
type journalBatch struct {
	registrations []*store.Registration
	decisions     []*store.Decision
}

func (m *Manager) queueRegistration(batch *journalBatch, op string, mx *mix.Mix, withParcel bool) {
	if m.journal == nil {
		return
	}

	rec := &store.Registration{
		RegistrationID: mx.RegistrationID,
		Owner:          mx.Token.String(),
		Operation:      op,
		Time:           time.Now(),
	}
	if withParcel {
		data, err := parcel.MarshalMix(mx)
		if err != nil {
			m.logger.Warn("cannot encode journaled mix", "registration_id", mx.RegistrationID, "error", err)
		}
		rec.Parcel = data
	}
	batch.registrations = append(batch.registrations, rec)
}

func (m *Manager) queueDecision(batch *journalBatch, h StreamHandle, stage string, s mix.Stream, matched string, ambiguous bool) {
	if m.journal == nil {
		return
	}

	batch.decisions = append(batch.decisions, &store.Decision{
		StreamHandle: string(h),
		Stage:        stage,
		Event:        recordConfigEvent(s.Class, stage),
		Class:        s.Class,
		Usage:        s.Usage,
		Source:       s.Source,
		UID:          s.UID,
		UserID:       s.UserID,
		SessionID:    s.SessionID,
		MatchedID:    matched,
		Ambiguous:    ambiguous,
		Time:         time.Now(),
	})
}

// flush writes the collected records. Each write is bounded by
// JournalTimeout and survives cancellation of ctx.
func (m *Manager) flush(ctx context.Context, batch *journalBatch) {
	if m.journal == nil || (len(batch.registrations) == 0 && len(batch.decisions) == 0) {
		return
	}
	ctx = context.WithoutCancel(ctx)

	for _, rec := range batch.registrations {
		wctx, cancel := context.WithTimeout(ctx, m.config.JournalTimeout)
		err := m.journal.RecordRegistration(wctx, rec)
		cancel()
		if err != nil && !errors.Is(err, store.ErrClosed) {
			m.logger.Error("failed to journal registration", "registration_id", rec.RegistrationID, "error", err)
		}
	}
	for _, d := range batch.decisions {
		wctx, cancel := context.WithTimeout(ctx, m.config.JournalTimeout)
		err := m.journal.RecordDecision(wctx, d)
		cancel()
		if err != nil && !errors.Is(err, store.ErrClosed) {
			m.logger.Error("failed to journal decision", "stream", d.StreamHandle, "error", err)
		}
	}
}

// recordConfigEvent maps a decision stage to its recording configuration
// event. Only capture streams have a recording configuration.
func recordConfigEvent(class mix.StreamClass, stage string) mix.RecordConfigEvent {
	if class != mix.StreamCapture {
		return mix.RecordConfigEventNone
	}
	switch stage {
	case store.StageStart:
		return mix.RecordConfigEventStart
	case store.StageStop:
		return mix.RecordConfigEventStop
	default:
		return mix.RecordConfigEventUpdate
	}
}
