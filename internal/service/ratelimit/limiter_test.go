package ratelimit

import (
	"testing"
	"time"
)

func TestAllowDrainsBucket(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0) {
			t.Fatalf("allow %d should pass", i)
		}
	}
	if l.Allow("k", 3, 0) {
		t.Fatalf("bucket should be empty")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 100) {
		t.Fatalf("first token")
	}
	if l.Allow("k", 1, 100) {
		t.Fatalf("bucket should be empty immediately after")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("k", 1, 100) {
		t.Fatalf("bucket should have refilled")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatalf("a")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("draining a must not affect b")
	}
	if l.Allow("a", 1, 0) {
		t.Fatalf("a should be empty")
	}
}
