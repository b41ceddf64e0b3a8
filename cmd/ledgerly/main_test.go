package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerly/internal/log"
	"ledgerly/internal/storage"
)

func TestPurgeIdleStopsWithContext(t *testing.T) {
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		purgeIdle(ctx, db, time.Hour, log.Discard())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purgeIdle kept running after its context was cancelled")
	}
}
