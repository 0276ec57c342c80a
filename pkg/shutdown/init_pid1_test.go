package shutdown

import (
	"testing"
)

func TestSetChildSubreaper(t *testing.T) {
	// prctl(PR_SET_CHILD_SUBREAPER, 1) is allowed for any process, not
	// just PID 1.
	if err := SetChildSubreaper(); err != nil {
		t.Fatalf("SetChildSubreaper failed: %v", err)
	}

	isSub, err := IsChildSubreaper()
	if err != nil {
		t.Fatalf("IsChildSubreaper failed: %v", err)
	}
	if !isSub {
		t.Fatal("expected process to be a child subreaper")
	}
}

func TestIgnoreTerminalSignals(t *testing.T) {
	// Just verify it doesn't panic
	ignoreTerminalSignals()
}
