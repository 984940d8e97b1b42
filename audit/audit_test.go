package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelom97/scimgateway/audit"
)

type recordingSink struct {
	entries []audit.Entry
	err     error
}

func (s *recordingSink) Write(ctx context.Context, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return s.err
}

type recordingLogger struct {
	errors []string
}

func (l *recordingLogger) Error(msg string, args ...any) {
	l.errors = append(l.errors, msg)
}

func TestNewEntryFillsTimestampAndTTL(t *testing.T) {
	e := audit.NewEntry("tenant-a", audit.EntryResourceCreated, "created user jdoe")
	assert.Equal(t, "tenant-a", e.TenantID)
	assert.Equal(t, audit.EntryResourceCreated, e.Type)
	assert.False(t, e.OccurredAt.IsZero())
	assert.True(t, e.TTL > 0)
}

func TestBestEffortSinkWritesThrough(t *testing.T) {
	sink := &recordingSink{}
	log := &recordingLogger{}
	b := audit.NewBestEffortSink(sink, log)

	entry := audit.NewEntry("tenant-a", audit.EntryResourceCreated, "ok")
	b.Write(context.Background(), entry)

	require.Len(t, sink.entries, 1)
	assert.Equal(t, entry, sink.entries[0])
	assert.Empty(t, log.errors)
}

func TestBestEffortSinkSwallowsAndLogsFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("backend unavailable")}
	log := &recordingLogger{}
	b := audit.NewBestEffortSink(sink, log)

	assert.NotPanics(t, func() {
		b.Write(context.Background(), audit.NewEntry("tenant-a", audit.EntryAdapterDispatchFail, "boom"))
	})
	require.Len(t, log.errors, 1)
	assert.Equal(t, "audit write failed", log.errors[0])
}

func TestBestEffortSinkNilSinkIsNoop(t *testing.T) {
	b := audit.NewBestEffortSink(nil, &recordingLogger{})
	assert.NotPanics(t, func() {
		b.Write(context.Background(), audit.NewEntry("tenant-a", audit.EntryResourceDeleted, "noop"))
	})
}

func TestNopSinkDiscardsEntries(t *testing.T) {
	var s audit.Sink = audit.NopSink{}
	err := s.Write(context.Background(), audit.NewEntry("tenant-a", audit.EntryMembershipChanged, "x"))
	assert.NoError(t, err)
}
