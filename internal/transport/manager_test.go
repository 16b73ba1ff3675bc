package transport

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 5,
		PollInterval:         2 * time.Second,
	}
}

func TestManager_SelectEntersConnecting(t *testing.T) {
	m := NewManager(testConfig())

	plan := m.Select(7)
	if !plan.Dial {
		t.Error("select should request a dial")
	}
	if !plan.CancelReconnect || !plan.StopPolling {
		t.Error("select should cancel stale timers")
	}
	if m.State() != StateConnecting {
		t.Errorf("expected StateConnecting, got %v", m.State())
	}
	if m.ConversationID() != 7 {
		t.Errorf("expected conversation 7, got %d", m.ConversationID())
	}
}

func TestManager_DialSuccessEntersConnected(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(1)

	plan := m.HandleDialResult(m.Gen(), nil, nil)
	if m.State() != StateConnected {
		t.Errorf("expected StateConnected, got %v", m.State())
	}
	if !plan.CancelReconnect {
		t.Error("successful open should clear the pending reconnect timer")
	}
	if m.Polling() {
		t.Error("polling should stop while connected")
	}
}

func TestManager_StaleDialResultIsDiscarded(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(1)
	stale := m.Gen()
	m.Select(2) // reselection bumps the generation

	plan := m.HandleDialResult(stale, nil, nil)
	if plan.Dial || plan.StartPolling || plan.ReconnectIn != 0 {
		t.Error("stale dial result should produce an empty plan")
	}
	if m.State() != StateConnecting {
		t.Errorf("state should still track the new selection, got %v", m.State())
	}
}

func TestManager_AbnormalCloseSchedulesReconnectAndPolling(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(1)
	m.HandleDialResult(m.Gen(), nil, nil)

	plan := m.HandleClosed(m.Gen(), abnormalClosure)
	if m.State() != StateReconnecting {
		t.Errorf("expected StateReconnecting, got %v", m.State())
	}
	if !plan.StartPolling {
		t.Error("polling must start in the same transition as the reconnect scheduling")
	}
	if plan.ReconnectIn != 5*time.Second {
		t.Errorf("expected 5s reconnect delay, got %v", plan.ReconnectIn)
	}
	if !m.Polling() {
		t.Error("polling flag should be set while reconnecting")
	}
}

func TestManager_PolicyCloseGoesStraightToPollingOnly(t *testing.T) {
	for _, code := range []int{1008, closeBadRequest, closeUnauthenticated, closeForbidden} {
		m := NewManager(testConfig())
		m.Select(1)
		m.HandleDialResult(m.Gen(), nil, nil)

		plan := m.HandleClosed(m.Gen(), code)
		if m.State() != StatePollingOnly {
			t.Errorf("code %d: expected StatePollingOnly, got %v", code, m.State())
		}
		if plan.ReconnectIn != 0 {
			t.Errorf("code %d: no reconnect should be scheduled", code)
		}
		if plan.Notice != "" {
			t.Errorf("code %d: policy degrade is silent, got notice %q", code, plan.Notice)
		}
		if !plan.StartPolling {
			t.Errorf("code %d: polling must start", code)
		}
	}
}

func TestManager_ReconnectBudgetExhaustionIsPermanentWithOneNotice(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(1)

	dials := 0
	var notices []string
	// Drive the machine through repeated dial failures until it gives up.
	plan := m.HandleDialResult(m.Gen(), nil, errDialFailed)
	for i := 0; i < 20; i++ {
		if plan.Notice != "" {
			notices = append(notices, plan.Notice)
		}
		if plan.ReconnectIn > 0 {
			plan = m.HandleReconnectTimer(m.Gen())
			if plan.Dial {
				dials++
				plan = m.HandleDialResult(m.Gen(), nil, errDialFailed)
			}
			continue
		}
		break
	}

	if m.State() != StatePollingOnly {
		t.Fatalf("expected StatePollingOnly after exhausting the budget, got %v", m.State())
	}
	if dials > 5 {
		t.Errorf("never more than 5 reconnect attempts, got %d", dials)
	}
	if len(notices) != 1 {
		t.Errorf("expected exactly one degraded notice, got %d", len(notices))
	}

	// Once polling-only, timers for this selection stay dead.
	plan = m.HandleReconnectTimer(m.Gen())
	if plan.Dial {
		t.Error("no automatic retries may resume after the budget is exhausted")
	}
}

func TestManager_TeardownIsIdempotent(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(1)
	m.HandleDialResult(m.Gen(), nil, nil)

	m.Teardown()
	if m.State() != StateDisconnected {
		t.Errorf("expected StateDisconnected, got %v", m.State())
	}
	// A second teardown with nothing live must be a no-op.
	plan := m.Teardown()
	if !plan.CancelReconnect || !plan.StopPolling {
		t.Error("teardown plan always cancels timers, even when none are set")
	}
	if m.Polling() {
		t.Error("no polling after teardown")
	}
	if m.ConversationID() != 0 {
		t.Error("teardown clears the conversation")
	}
}

func TestManager_SuspendKeepsConversationForResume(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(9)
	m.HandleDialResult(m.Gen(), nil, nil)

	m.Suspend()
	if m.State() != StateDisconnected {
		t.Errorf("suspend should disconnect, got %v", m.State())
	}
	if m.Polling() {
		t.Error("zero timers while hidden")
	}

	plan := m.Resume()
	if !plan.Dial {
		t.Error("resume should re-attempt the channel")
	}
	if m.ConversationID() != 9 {
		t.Errorf("resume should target conversation 9, got %d", m.ConversationID())
	}
	if m.State() != StateConnecting {
		t.Errorf("expected StateConnecting after resume, got %v", m.State())
	}
}

func TestManager_ResumeWithoutConversationIsNoop(t *testing.T) {
	m := NewManager(testConfig())
	plan := m.Resume()
	if plan.Dial || plan.StartPolling {
		t.Error("resume with no conversation should do nothing")
	}
}

func TestManager_ResumeResetsRetryBudget(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(3)

	// Exhaust the budget.
	plan := m.HandleDialResult(m.Gen(), nil, errDialFailed)
	for plan.ReconnectIn > 0 {
		plan = m.HandleReconnectTimer(m.Gen())
		if plan.Dial {
			plan = m.HandleDialResult(m.Gen(), nil, errDialFailed)
		}
	}
	if m.State() != StatePollingOnly {
		t.Fatalf("setup: expected StatePollingOnly, got %v", m.State())
	}

	m.Suspend()
	plan = m.Resume()
	if !plan.Dial {
		t.Error("resume is an explicit trigger and leaves polling-only")
	}
	// The fresh selection gets a fresh notice budget too.
	plan = m.HandleDialResult(m.Gen(), nil, errDialFailed)
	sawNotice := false
	for i := 0; i < 20; i++ {
		if plan.Notice != "" {
			sawNotice = true
			break
		}
		if plan.ReconnectIn == 0 {
			break
		}
		plan = m.HandleReconnectTimer(m.Gen())
		if plan.Dial {
			plan = m.HandleDialResult(m.Gen(), nil, errDialFailed)
		}
	}
	if !sawNotice {
		t.Error("a resumed selection that exhausts its budget notices again")
	}
}

func TestManager_StaleCloseAfterReselectionIsIgnored(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(1)
	m.HandleDialResult(m.Gen(), nil, nil)
	stale := m.Gen()

	m.Select(2)
	plan := m.HandleClosed(stale, abnormalClosure)
	if plan.StartPolling || plan.ReconnectIn != 0 {
		t.Error("close events from the torn-down selection must be ignored")
	}
	if m.State() != StateConnecting {
		t.Errorf("new selection state must be preserved, got %v", m.State())
	}
}

func TestManager_RepeatedLossesRequestPollingOnce(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(1)

	starts := 0
	// Fail every dial until the budget runs out; the polling ticker must be
	// requested exactly once for the whole selection.
	plan := m.HandleDialResult(m.Gen(), nil, errDialFailed)
	for i := 0; i < 20; i++ {
		if plan.StartPolling {
			starts++
		}
		if plan.ReconnectIn == 0 {
			break
		}
		plan = m.HandleReconnectTimer(m.Gen())
		if plan.Dial {
			plan = m.HandleDialResult(m.Gen(), nil, errDialFailed)
		}
	}

	if m.State() != StatePollingOnly {
		t.Fatalf("expected StatePollingOnly after exhausting the budget, got %v", m.State())
	}
	if starts != 1 {
		t.Errorf("expected one StartPolling per selection, got %d", starts)
	}
}

func TestManager_ReopenedChannelLossRestartsPolling(t *testing.T) {
	m := NewManager(testConfig())
	m.Select(1)
	m.HandleDialResult(m.Gen(), nil, errDialFailed)

	// A successful reconnect stops the ticker, so the next loss needs a
	// fresh one.
	plan := m.HandleReconnectTimer(m.Gen())
	if !plan.Dial {
		t.Fatal("reconnect timer should dial")
	}
	plan = m.HandleDialResult(m.Gen(), nil, nil)
	if !plan.StopPolling {
		t.Fatal("successful open should stop the ticker")
	}

	plan = m.HandleClosed(m.Gen(), abnormalClosure)
	if !plan.StartPolling {
		t.Error("loss after a clean stretch must restart polling")
	}
}

var errDialFailed = errTest("dial failed")

type errTest string

func (e errTest) Error() string { return string(e) }
