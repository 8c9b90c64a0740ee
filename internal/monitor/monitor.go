// Package monitor owns the incident detection and alert orchestration state
// machine. Every input — timer fires, analysis completions, operator commands,
// notification completions — is serialized through one event loop, so state
// transitions never race each other. Long-running calls (analyze, alert) run
// in their own goroutines and deliver completions back onto the loop tagged
// with the incident generation they started under; stale completions are
// discarded instead of mutating state.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"safeguard/internal/analysis"
	"safeguard/internal/config"
	"safeguard/internal/notify"
	"safeguard/internal/source"
	"safeguard/internal/timer"
)

const manualReason = "Manual activation."

// Analyzer is the analysis gateway slice the orchestrator consumes.
type Analyzer interface {
	Analyze(ctx context.Context, sample analysis.Sample) (analysis.Verdict, error)
}

// Alerter is the notification gateway slice the orchestrator consumes.
type Alerter interface {
	Alert(contact, sender, reason string) (notify.Result, error)
}

// EvidenceStore archives the confirming frame. Optional.
type EvidenceStore interface {
	Put(ctx context.Context, incidentID string, frame analysis.FrameSample) error
}

type Options struct {
	Source   source.Source
	Analyzer Analyzer
	Alerter  Alerter
	Evidence EvidenceStore // nil disables evidence capture

	Session     config.Session
	SettleDelay time.Duration
	HistorySize int

	// NewScheduler lets tests substitute the timer subsystem. The post
	// function delivers timer callbacks onto the event loop.
	NewScheduler func(post func(func())) timer.Scheduler
}

type Monitor struct {
	src         source.Source
	analyzer    Analyzer
	alerter     Alerter
	evidence    EvidenceStore
	settleDelay time.Duration
	sched       timer.Scheduler

	events   chan func()
	done     chan struct{}
	stopOnce sync.Once
	runCtx   context.Context

	// Everything below is owned by the event loop goroutine.
	state         State
	session       config.Session
	pending       *config.Session
	verdict       *analysis.Verdict
	attempt       *AlertAttempt
	lastFrame     *analysis.FrameSample
	incidentID    string
	incidentStart time.Time
	gen           uint64
	intervalH     timer.Handle
	settleH       timer.Handle

	history *lru.Cache[string, IncidentRecord]

	snapMu   sync.Mutex
	lastSnap Snapshot
	subs     map[uint64]chan Snapshot
	subSeq   uint64
}

func New(opts Options) (*Monitor, error) {
	if opts.Source == nil {
		return nil, errors.New("monitor: source is required")
	}
	if opts.Analyzer == nil {
		return nil, errors.New("monitor: analyzer is required")
	}
	if opts.Alerter == nil {
		return nil, errors.New("monitor: alerter is required")
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 30 * time.Second
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 32
	}
	if opts.Session.SampleInterval <= 0 {
		opts.Session.SampleInterval = 5 * time.Second
	}
	if opts.Session.Mode == "" {
		opts.Session.Mode = config.ModeManual
	}

	hist, err := lru.New[string, IncidentRecord](opts.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("monitor: history: %w", err)
	}

	m := &Monitor{
		src:         opts.Source,
		analyzer:    opts.Analyzer,
		alerter:     opts.Alerter,
		evidence:    opts.Evidence,
		settleDelay: opts.SettleDelay,
		events:      make(chan func(), 64),
		done:        make(chan struct{}),
		state:       StateIdle,
		session:     opts.Session,
		gen:         1,
		history:     hist,
		subs:        make(map[uint64]chan Snapshot),
	}
	newSched := opts.NewScheduler
	if newSched == nil {
		newSched = func(post func(func())) timer.Scheduler { return timer.New(post) }
	}
	m.sched = newSched(m.post)
	return m, nil
}

// Start launches the event loop. The context bounds the whole session:
// when it ends the monitor stops.
func (m *Monitor) Start(ctx context.Context) {
	m.runCtx = ctx
	m.armInterval()
	m.publish()
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-m.done:
			return
		case ev := <-m.events:
			ev()
		}
	}
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.sched.Stop()
	})
}

// post delivers an event onto the loop, giving up if the monitor stopped.
func (m *Monitor) post(ev func()) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// Snapshot returns the latest published observable state.
func (m *Monitor) Snapshot() Snapshot {
	m.snapMu.Lock()
	defer m.snapMu.Unlock()
	return m.lastSnap
}

// Subscribe delivers a snapshot on every transition, starting with the
// current one. Slow consumers lose the oldest pending snapshot, never the
// newest. The subscription ends with ctx.
func (m *Monitor) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	m.snapMu.Lock()
	m.subSeq++
	id := m.subSeq
	m.subs[id] = ch
	snap := m.lastSnap
	m.snapMu.Unlock()

	pushSnapshot(ch, snap)
	go func() {
		<-ctx.Done()
		m.snapMu.Lock()
		delete(m.subs, id)
		m.snapMu.Unlock()
	}()
	return ch
}

// History lists completed incidents, newest first.
func (m *Monitor) History() []IncidentRecord {
	vals := m.history.Values()
	out := make([]IncidentRecord, 0, len(vals))
	for i := len(vals) - 1; i >= 0; i-- {
		out = append(out, vals[i])
	}
	return out
}

func (m *Monitor) publish() {
	snap := Snapshot{
		State:      m.state,
		Session:    viewOf(m.session),
		IncidentID: m.incidentID,
		Generation: m.gen,
	}
	if m.verdict != nil {
		v := *m.verdict
		snap.Verdict = &v
	}
	if m.attempt != nil {
		a := *m.attempt
		snap.Attempt = &a
	}

	m.snapMu.Lock()
	m.lastSnap = snap
	for _, ch := range m.subs {
		pushSnapshot(ch, snap)
	}
	m.snapMu.Unlock()
}

func pushSnapshot(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (m *Monitor) setState(s State) {
	m.state = s
	m.publish()
}

func (m *Monitor) armInterval() {
	if m.session.Mode == config.ModePeriodic && m.session.SampleInterval > 0 {
		if m.intervalH == 0 {
			m.intervalH = m.sched.StartInterval(m.session.SampleInterval, m.requestSample)
		}
		return
	}
	if m.intervalH != 0 {
		m.sched.Cancel(m.intervalH)
		m.intervalH = 0
	}
}

func (m *Monitor) logf(format string, args ...any) {
	log.Printf("monitor: "+format, args...)
}
