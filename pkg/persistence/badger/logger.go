package badger

import (
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// badgerLoggerAdapter routes badger's printf style logging into a named zap logger.
// Badger terminates most messages with a newline, which is trimmed.
type badgerLoggerAdapter struct {
	logger *zap.Logger
}

var _ badgerdb.Logger = (*badgerLoggerAdapter)(nil)

func (b *badgerLoggerAdapter) sugar() *zap.SugaredLogger {
	return b.logger.Named("badger").Sugar()
}

func (b *badgerLoggerAdapter) Errorf(format string, args ...interface{}) {
	b.sugar().Errorf(strings.TrimSuffix(format, "\n"), args...)
}

func (b *badgerLoggerAdapter) Warningf(format string, args ...interface{}) {
	b.sugar().Warnf(strings.TrimSuffix(format, "\n"), args...)
}

// Infof is demoted to debug; badger is chatty on open and close.
func (b *badgerLoggerAdapter) Infof(format string, args ...interface{}) {
	b.sugar().Debugf(strings.TrimSuffix(format, "\n"), args...)
}

func (b *badgerLoggerAdapter) Debugf(format string, args ...interface{}) {
	b.sugar().Debugf(strings.TrimSuffix(format, "\n"), args...)
}
