package config

import (
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("TEST_PORT", "")
	p, err := Port("TEST_PORT", "8085")
	if err != nil || p != "8085" {
		t.Fatalf("expected fallback 8085, got %q (%v)", p, err)
	}
}

func TestIntAndDuration(t *testing.T) {
	t.Setenv("TEST_INT", "3")
	n, err := Int("TEST_INT", 1)
	if err != nil || n != 3 {
		t.Fatalf("expected 3, got %d (%v)", n, err)
	}
	t.Setenv("TEST_INT", "three")
	if _, err := Int("TEST_INT", 1); err == nil {
		t.Fatal("expected parse error")
	}

	t.Setenv("TEST_DURATION", "")
	d, err := Duration("TEST_DURATION", 5*time.Second)
	if err != nil || d != 5*time.Second {
		t.Fatalf("expected fallback, got %s (%v)", d, err)
	}
	t.Setenv("TEST_DURATION", "-1s")
	if _, err := Duration("TEST_DURATION", time.Second); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "off")
	if Bool("TEST_BOOL", true) {
		t.Fatal("expected false")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !Bool("TEST_BOOL", true) {
		t.Fatal("expected fallback true")
	}
}
