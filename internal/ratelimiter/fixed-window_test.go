package ratelimiter

import (
	"testing"
	"time"
)

func TestFixedWindowAllowsUpToLimit(t *testing.T) {
	fw := NewFixedWindow(3, time.Minute)

	for i := 0; i < 3; i++ {
		if ok, _ := fw.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, retry := fw.Allow("1.2.3.4"); ok {
		t.Fatal("fourth request should be rejected")
	} else if retry <= 0 || retry > time.Minute {
		t.Fatalf("unexpected retry-after %v", retry)
	}
}

func TestFixedWindowKeysAreIndependent(t *testing.T) {
	fw := NewFixedWindow(1, time.Minute)

	if ok, _ := fw.Allow("a"); !ok {
		t.Fatal("first key should be allowed")
	}
	if ok, _ := fw.Allow("b"); !ok {
		t.Fatal("second key should be allowed")
	}
	if ok, _ := fw.Allow("a"); ok {
		t.Fatal("first key should now be limited")
	}
}

func TestFixedWindowResetsAfterWindow(t *testing.T) {
	fw := NewFixedWindow(1, 10*time.Millisecond)

	if ok, _ := fw.Allow("a"); !ok {
		t.Fatal("should be allowed")
	}
	if ok, _ := fw.Allow("a"); ok {
		t.Fatal("should be limited inside the window")
	}

	time.Sleep(15 * time.Millisecond)

	if ok, _ := fw.Allow("a"); !ok {
		t.Fatal("should be allowed after the window elapses")
	}
}
