package coordinator

import (
	"context"
	"testing"
)

func TestSession_Abort(t *testing.T) {
	s := NewSession()
	if s.Abort() {
		t.Error("Abort() on idle session should report false")
	}

	ctx, release := s.Begin(context.Background())
	defer release()
	if !s.Active() {
		t.Error("session should track the operation")
	}

	if !s.Abort() {
		t.Error("Abort() should report the tracked operation")
	}
	if ctx.Err() == nil {
		t.Error("context not cancelled by Abort")
	}
	if s.Active() {
		t.Error("aborted operation still tracked")
	}
}

func TestSession_BeginReplacesWithoutCancelling(t *testing.T) {
	s := NewSession()

	first, releaseFirst := s.Begin(context.Background())
	second, releaseSecond := s.Begin(context.Background())
	defer releaseSecond()

	if first.Err() != nil {
		t.Error("previous operation must not be cancelled by Begin")
	}

	s.Abort()
	if second.Err() == nil {
		t.Error("Abort should cancel the current operation")
	}
	if first.Err() != nil {
		t.Error("Abort must only reach the tracked operation")
	}

	releaseFirst()
	if first.Err() == nil {
		t.Error("release should cancel its own context")
	}
}

func TestSession_StaleReleaseKeepsCurrent(t *testing.T) {
	s := NewSession()

	_, releaseFirst := s.Begin(context.Background())
	second, releaseSecond := s.Begin(context.Background())
	defer releaseSecond()

	releaseFirst()
	if !s.Active() {
		t.Error("releasing a replaced operation must not untrack the current one")
	}
	if second.Err() != nil {
		t.Error("current operation cancelled by stale release")
	}
}

func TestSession_Close(t *testing.T) {
	s := NewSession()
	ctx, release := s.Begin(context.Background())
	defer release()

	s.Close()
	if ctx.Err() == nil {
		t.Error("Close should abort the tracked operation")
	}

	after, releaseAfter := s.Begin(context.Background())
	defer releaseAfter()
	if after.Err() == nil {
		t.Error("Begin after Close should return a cancelled context")
	}
	if s.Active() {
		t.Error("closed session should not track operations")
	}
}
