package pagecapture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/launcher"
)

// resolveBrowser returns a Chrome executable for WithAutoDownload. An
// installed browser is preferred; otherwise a pinned Chromium revision is
// downloaded into the rod cache (~/.cache/rod/browser on Unix) once and
// reused afterwards.
func resolveBrowser(ctx context.Context, logger *slog.Logger) (string, error) {
	if path, ok := launcher.LookPath(); ok {
		logger.Debug("using installed browser", "chrome", path)
		return path, nil
	}

	b := launcher.NewBrowser()
	b.Context = ctx
	logger.Info("downloading browser", "revision", b.Revision, "dir", b.RootDir)
	path, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("pagecapture: downloading browser: %w", err)
	}
	return path, nil
}
