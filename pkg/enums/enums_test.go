package enums

import "testing"

func TestParseMovementType(t *testing.T) {
	got, err := ParseMovementType("entry")
	if err != nil || got != MovementTypeEntry {
		t.Fatalf("expected entry, got %q err=%v", got, err)
	}
	if _, err := ParseMovementType("transfer"); err == nil {
		t.Fatal("expected unknown movement type to fail")
	}
	if MovementTypeExit.Sign() != -1 || MovementTypeEntry.Sign() != 1 {
		t.Fatal("unexpected movement signs")
	}
}

func TestNotificationSeverityValidity(t *testing.T) {
	if !NotificationSeverityWarning.IsValid() {
		t.Fatal("warning should be valid")
	}
	if NotificationSeverity("fatal").IsValid() {
		t.Fatal("fatal should not be valid")
	}
	if _, err := ParseNotificationSeverity("error"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
