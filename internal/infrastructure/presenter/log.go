// Package presenter ships the headless presentation adapter. The real
// prompt UI lives outside this repo and implements the same port; a
// daemon running without one still logs every transition.
package presenter

import (
	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/logging"
	"github.com/doeshing/kmd/internal/ports"
)

// Log writes presentation events to the daemon log.
type Log struct {
	logger *zap.Logger
}

// NewLog builds the logging presenter.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logging.NopIfNil(logger)}
}

func (p *Log) Show() {
	p.logger.Info("prompt shown")
}

func (p *Log) Hide() {
	p.logger.Info("prompt hidden")
}

func (p *Log) SetText(text string) {
	p.logger.Info("command ready", zap.String("command", text))
}

func (p *Log) NotifyError(kind domain.ErrorKind, msg string) {
	p.logger.Warn("presentation error",
		zap.String("kind", string(kind)),
		zap.String("message", msg))
}

var _ ports.Presenter = (*Log)(nil)
