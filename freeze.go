package pagecapture

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// freezeCSS stops every time-based effect on the surface. It applies to the
// whole document because inherited or sibling effects can bleed into the
// captured region.
const freezeCSS = `*, *::before, *::after {
  animation-duration: 0s !important;
  animation-delay: 0s !important;
  animation-iteration-count: 1 !important;
  transition-duration: 0s !important;
  transition-delay: 0s !important;
  scroll-behavior: auto !important;
  caret-color: transparent !important;
}`

// FreezeToken owns the installed animation override. Release it exactly
// once; further calls are no-ops.
type FreezeToken struct {
	surface Surface
	id      string

	once sync.Once
	err  error
}

// Freeze installs the animation override on s.
func Freeze(ctx context.Context, s Surface) (*FreezeToken, error) {
	id := "pagecapture-freeze-" + uuid.NewString()
	if err := s.InstallStyle(ctx, id, freezeCSS); err != nil {
		// The sheet may have been appended before the failure surfaced.
		_ = s.RemoveStyle(context.WithoutCancel(ctx), id)
		return nil, fmt.Errorf("installing freeze style: %w", err)
	}
	return &FreezeToken{surface: s, id: id}, nil
}

// ID returns the style sheet identifier.
func (t *FreezeToken) ID() string { return t.id }

// Release removes the override. Only the first call reaches the surface;
// later calls return the first call's error.
func (t *FreezeToken) Release(ctx context.Context) error {
	t.once.Do(func() {
		if err := t.surface.RemoveStyle(ctx, t.id); err != nil {
			t.err = fmt.Errorf("removing freeze style: %w", err)
		}
	})
	return t.err
}
