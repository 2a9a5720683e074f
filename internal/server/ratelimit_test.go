package server

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestMultiLimiterAllow(t *testing.T) {
	ml := newMultiLimiter(rate.Limit(2), 2, time.Minute)
	if !ml.allow("a") {
		t.Fatal("first call should pass")
	}
	if !ml.allow("a") {
		t.Fatal("second call should pass")
	}
	if ml.allow("a") {
		t.Fatal("third immediate call should be limited")
	}
	// independent keys get independent buckets
	if !ml.allow("b") {
		t.Fatal("fresh key should pass")
	}
}
