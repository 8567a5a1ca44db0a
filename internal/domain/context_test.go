package domain

import "testing"

func TestParseIntent(t *testing.T) {
	for _, in := range Intents {
		got, err := ParseIntent(string(in))
		if err != nil || got != in {
			t.Errorf("ParseIntent(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseIntent("order_pizza"); err == nil {
		t.Error("ParseIntent must reject labels outside the closed set")
	}
}

func TestCardLastFour(t *testing.T) {
	c := Card{CardNumber: "4532-1234-5678-9012"}
	if got := c.LastFour(); got != "9012" {
		t.Errorf("LastFour = %q, want 9012", got)
	}
	short := Card{CardNumber: "12"}
	if got := short.LastFour(); got != "12" {
		t.Errorf("LastFour = %q, want 12", got)
	}
}

func TestPushInterruptionSnapshotsData(t *testing.T) {
	c := NewConversationContext("s1", "u1")
	c.CurrentIntent = IntentCardBlocking
	c.State = StateCollectingInfo
	c.WorkflowStep = "reason_collection"
	c.CollectedData["k"] = "v"

	c.PushInterruption()
	c.ResetWorkflow()

	if len(c.InterruptionStack) != 1 {
		t.Fatalf("Stack length = %d, want 1", len(c.InterruptionStack))
	}
	frame := c.InterruptionStack[0]
	if frame.Intent != IntentCardBlocking || frame.WorkflowStep != "reason_collection" {
		t.Errorf("Frame wrong: %+v", frame)
	}
	if frame.CollectedData["k"] != "v" {
		t.Error("Frame must keep the snapshot despite the reset")
	}
	if len(c.CollectedData) != 0 || c.State != StateIdle || c.WorkflowStep != "" {
		t.Errorf("Reset incomplete: %+v", c)
	}
}

func TestRecentTurns(t *testing.T) {
	c := NewConversationContext("s1", "u1")
	for _, m := range []string{"a", "b", "c", "d"} {
		c.AppendTurn("user", m)
	}

	recent := c.RecentTurns(2)
	if len(recent) != 2 || recent[0].Message != "c" || recent[1].Message != "d" {
		t.Errorf("RecentTurns(2) = %+v", recent)
	}
	if got := c.RecentTurns(10); len(got) != 4 {
		t.Errorf("RecentTurns(10) length = %d, want all 4", len(got))
	}
}
