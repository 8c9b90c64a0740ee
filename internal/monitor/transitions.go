package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"safeguard/internal/analysis"
	"safeguard/internal/config"
	"safeguard/internal/notify"
	"safeguard/internal/source"
)

// AnalyzeNow asks for one sample-and-analyze cycle. Dropped unless idle;
// an in-flight analysis is never superseded.
func (m *Monitor) AnalyzeNow() {
	m.post(m.requestSample)
}

// TriggerManual opens an incident without analysis. Guarded off while an
// incident is already in flight.
func (m *Monitor) TriggerManual() {
	m.post(m.manualTrigger)
}

// Reset forces recovery to idle from any state, including mid-alert.
func (m *Monitor) Reset() {
	m.post(func() { m.reset() })
}

// SetContact updates the emergency contact. Queued while alerting.
func (m *Monitor) SetContact(number string) error {
	if !config.ValidNumber(number) {
		return fmt.Errorf("contact %q is not E.164", number)
	}
	m.post(func() {
		m.applySession(func(s *config.Session) { s.Contact = number })
	})
	return nil
}

// SetSender updates the sender identity. Queued while alerting.
func (m *Monitor) SetSender(number string) error {
	if !config.ValidNumber(number) {
		return fmt.Errorf("sender %q is not E.164", number)
	}
	m.post(func() {
		m.applySession(func(s *config.Session) { s.Sender = number })
	})
	return nil
}

// SetMode switches the detection mode. Queued while alerting.
func (m *Monitor) SetMode(raw string) error {
	mode, ok := config.ParseMode(raw)
	if !ok {
		return fmt.Errorf("unknown mode %q", raw)
	}
	m.post(func() {
		m.applySession(func(s *config.Session) { s.Mode = mode })
	})
	return nil
}

// applySession mutates the session configuration, or queues the mutation
// while an alert is in flight so the attempt never reads a half-updated
// target. Queued changes land on settle or reset.
func (m *Monitor) applySession(mutate func(*config.Session)) {
	if m.state == StateAlerting {
		if m.pending == nil {
			cp := m.session
			m.pending = &cp
		}
		mutate(m.pending)
		return
	}
	mutate(&m.session)
	m.rearmInterval()
	m.publish()
}

// rearmInterval reconciles the sampling interval slot with the session.
func (m *Monitor) rearmInterval() {
	if m.intervalH != 0 {
		m.sched.Cancel(m.intervalH)
		m.intervalH = 0
	}
	m.armInterval()
}

// requestSample handles a sampling tick or an operator analyze command.
func (m *Monitor) requestSample() {
	if m.state != StateIdle {
		// Drop. Sampling is paused for the rest of an incident and an
		// outstanding analysis is never cancelled or superseded.
		return
	}
	m.verdict = nil
	m.lastFrame = nil
	m.setState(StateSampling)

	gen := m.gen
	go func() {
		s, err := m.src.Sample(m.runCtx)
		m.post(func() { m.sampleDone(gen, s, err) })
	}()
}

func (m *Monitor) sampleDone(gen uint64, s analysis.Sample, err error) {
	if gen != m.gen || m.state != StateSampling {
		return
	}
	if err != nil {
		if !errors.Is(err, source.ErrUnavailable) {
			m.logf("sample failed: %v", err)
		}
		m.setState(StateIdle)
		return
	}
	if f, ok := s.(analysis.FrameSample); ok {
		m.lastFrame = &f
	}
	m.setState(StateAnalyzing)

	go func() {
		v, aErr := m.analyzer.Analyze(m.runCtx, s)
		m.post(func() { m.verdictDone(gen, v, aErr) })
	}()
}

func (m *Monitor) verdictDone(gen uint64, v analysis.Verdict, err error) {
	if gen != m.gen {
		m.logf("discarding stale verdict (generation %d, now %d)", gen, m.gen)
		return
	}
	if m.state != StateAnalyzing {
		return
	}
	if err != nil {
		m.logf("analysis failed: %v", err)
		m.setState(StateIdle)
		return
	}
	vv := v
	m.verdict = &vv
	if !v.IsAccident {
		m.setState(StateIdle)
		return
	}
	m.confirm(v.Reason)
}

func (m *Monitor) manualTrigger() {
	if m.state != StateIdle {
		// Guarded off mid-incident, ignored mid-analysis.
		return
	}
	v := analysis.Verdict{IsAccident: true, Confidence: 1.0, Reason: manualReason}
	m.verdict = &v
	m.confirm(v.Reason)
}

// confirm enters Confirmed and immediately advances to Alerting. Confirmed
// exists so the manual trigger and an automatic verdict share one entry point.
func (m *Monitor) confirm(reason string) {
	m.setState(StateConfirmed)
	m.enterAlerting(reason)
}

func (m *Monitor) enterAlerting(reason string) {
	if m.attempt != nil {
		m.logf("alert already attempted for incident %s; refusing re-entry", m.incidentID)
		return
	}
	if reason == "" {
		reason = manualReason
	}

	m.incidentID = uuid.NewString()
	m.incidentStart = time.Now()
	m.attempt = &AlertAttempt{
		Reason: reason,
		Result: notify.Result{
			SMS:  notify.Outcome{Status: notify.StatusPending},
			Call: notify.Outcome{Status: notify.StatusPending},
		},
		StartedAt: m.incidentStart,
	}
	// One consistent snapshot of the session at attempt creation.
	sess := m.session
	m.setState(StateAlerting)

	if m.evidence != nil && m.lastFrame != nil {
		frame := *m.lastFrame
		id := m.incidentID
		go func() {
			if err := m.evidence.Put(m.runCtx, id, frame); err != nil {
				m.logf("evidence upload failed for incident %s: %v", id, err)
			}
		}()
	}

	gen := m.gen
	go func() {
		res, err := m.alerter.Alert(sess.Contact, sess.Sender, reason)
		m.post(func() { m.alertDone(gen, res, err) })
	}()
}

func (m *Monitor) alertDone(gen uint64, res notify.Result, err error) {
	if gen != m.gen {
		m.logf("discarding stale alert outcome (generation %d, now %d)", gen, m.gen)
		return
	}
	if m.state != StateAlerting || m.attempt == nil {
		return
	}
	if err != nil {
		// Attempt is terminal regardless; the outcome record carries the detail.
		m.logf("alert attempt for incident %s: %v", m.incidentID, err)
	}
	m.attempt.Result = res
	m.attempt.Done = true
	m.setState(StateSettling)

	settleGen := m.gen
	m.settleH = m.sched.StartDelay(m.settleDelay, func() { m.settleFired(settleGen) })
}

func (m *Monitor) settleFired(gen uint64) {
	if gen != m.gen || m.state != StateSettling {
		return
	}
	m.reset()
}

// reset clears all per-incident data and returns to idle. Accepted in every
// state so the operator can always force recovery; it cancels live timers but
// lets in-flight network calls run to completion and discard their results.
func (m *Monitor) reset() {
	if m.attempt != nil {
		rec := IncidentRecord{
			ID:        m.incidentID,
			Reason:    m.attempt.Reason,
			Result:    m.attempt.Result,
			StartedAt: m.incidentStart,
			SettledAt: time.Now(),
		}
		if m.verdict != nil {
			rec.Confidence = m.verdict.Confidence
		}
		m.history.Add(rec.ID, rec)
	}

	if m.settleH != 0 {
		m.sched.Cancel(m.settleH)
		m.settleH = 0
	}
	m.verdict = nil
	m.attempt = nil
	m.lastFrame = nil
	m.incidentID = ""
	m.gen++

	if m.pending != nil {
		m.session = *m.pending
		m.pending = nil
	}
	m.rearmInterval()
	m.setState(StateIdle)
}
