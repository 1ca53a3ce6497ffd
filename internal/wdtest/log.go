package wdtest

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bft-labs/canary/pkg/log"
)

// NewLogger returns a Logger that writes through tb.Log.
func NewLogger(tb testing.TB) log.Logger {
	w := zerolog.ConsoleWriter{Out: zerolog.NewTestWriter(tb), NoColor: true}
	return log.NewZerologAdapterWithLogger(zerolog.New(w).With().Timestamp().Logger())
}

// SyncBuffer is a bytes.Buffer safe for one writer goroutine and concurrent readers.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
