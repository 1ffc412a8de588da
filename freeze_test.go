package pagecapture

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFreeze_ReleaseOnce(t *testing.T) {
	s := newFakeSurface(10, 10)
	ctx := context.Background()
	tok, err := Freeze(ctx, s)
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	css, ok := s.styles[tok.ID()]
	if !ok || !strings.Contains(css, "animation-duration: 0s") {
		t.Fatalf("freeze style not installed: %q", css)
	}
	for i := 0; i < 3; i++ {
		if err := tok.Release(ctx); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
	if s.installed() != 0 {
		t.Error("style still installed after Release")
	}
	if s.removals[tok.ID()] != 1 {
		t.Errorf("RemoveStyle called %d times, want 1", s.removals[tok.ID()])
	}
}

func TestFreeze_InstallErrorCleansUp(t *testing.T) {
	s := newFakeSurface(10, 10)
	s.installErr = errors.New("csp blocked")
	if _, err := Freeze(context.Background(), s); err == nil {
		t.Fatal("Freeze ignored install error")
	}
	if s.installed() != 0 || s.totalRemovals() != 1 {
		t.Errorf("partial install left behind: styles=%d removals=%d", s.installed(), s.totalRemovals())
	}
}

func TestFreeze_UniqueIDs(t *testing.T) {
	s := newFakeSurface(10, 10)
	a, _ := Freeze(context.Background(), s)
	b, _ := Freeze(context.Background(), s)
	if a.ID() == b.ID() {
		t.Error("two freezes share an id")
	}
}
