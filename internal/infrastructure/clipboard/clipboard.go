// Package clipboard copies generated commands to the system clipboard.
package clipboard

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/logging"
	"github.com/doeshing/kmd/internal/ports"
)

// writeAll and runWlCopy are package vars so tests can swap them out.
var (
	writeAll  = clipboard.WriteAll
	runWlCopy = wlCopy
)

// Sink places command text on the system clipboard.
type Sink struct {
	logger *zap.Logger
}

// NewSink builds the clipboard sink.
func NewSink(logger *zap.Logger) *Sink {
	return &Sink{logger: logging.NopIfNil(logger)}
}

// Enabled reports whether a copy attempt can succeed on this host.
// atotto selects Wayland only when both wl-copy and wl-paste exist;
// copying needs just wl-copy, so that half counts as available too.
func (s *Sink) Enabled() bool {
	if !clipboard.Unsupported {
		return true
	}
	return waylandSession() && haveWlCopy()
}

// Copy writes text to the clipboard, falling back to wl-copy on
// Wayland sessions where the X11 tools are missing or broken.
func (s *Sink) Copy(text string) error {
	err := writeAll(text)
	if err == nil {
		return nil
	}
	if runtime.GOOS == "linux" && waylandSession() && haveWlCopy() {
		if fallbackErr := runWlCopy(text); fallbackErr == nil {
			s.logger.Debug("clipboard copied via wl-copy fallback")
			return nil
		} else {
			err = fallbackErr
		}
	}
	s.logger.Warn("clipboard copy failed", zap.Error(err))
	return fmt.Errorf("%w: %v", domain.ErrClipboardUnavailable, err)
}

func waylandSession() bool {
	return os.Getenv("WAYLAND_DISPLAY") != ""
}

func haveWlCopy() bool {
	_, err := exec.LookPath("wl-copy")
	return err == nil
}

func wlCopy(text string) error {
	cmd := exec.Command("wl-copy")
	cmd.Stdin = bytes.NewBufferString(text)
	return cmd.Run()
}

var _ ports.Clipboard = (*Sink)(nil)
