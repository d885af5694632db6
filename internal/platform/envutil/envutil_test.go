package envutil

import (
	"testing"
	"time"
)

func TestDurationAcceptsBothForms(t *testing.T) {
	t.Setenv("CB_TEST_DUR", "45m")
	if got := Duration("CB_TEST_DUR", time.Second); got != 45*time.Minute {
		t.Fatalf("got %v", got)
	}
	t.Setenv("CB_TEST_DUR", "90")
	if got := Duration("CB_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("got %v", got)
	}
	t.Setenv("CB_TEST_DUR", "soon")
	if got := Duration("CB_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestIntAndBoolDefaults(t *testing.T) {
	t.Setenv("CB_TEST_INT", "nope")
	if got := Int("CB_TEST_INT", 7); got != 7 {
		t.Fatalf("got %d", got)
	}
	t.Setenv("CB_TEST_BOOL", "off")
	if Bool("CB_TEST_BOOL", true) {
		t.Fatalf("expected false")
	}
}
