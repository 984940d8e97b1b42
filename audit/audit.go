// Package audit defines the AuditLogEntry record shape and the
// best-effort AuditSink contract consumed by repository and router
// operations. Writes are fire-and-forget from the caller's perspective:
// a sink failure is logged (per internal/logging) and never turned into
// a user-visible error, the same "Register never hard-fails the caller"
// posture the teacher's plugin.Manager.Register/createAuthenticator pair
// already uses for registration-time problems.
package audit

import (
	"context"
	"time"
)

// EntryType enumerates the actions an AuditLogEntry can record.
type EntryType string

const (
	EntryResourceCreated     EntryType = "RESOURCE_CREATED"
	EntryResourceUpdated     EntryType = "RESOURCE_UPDATED"
	EntryResourceDeleted     EntryType = "RESOURCE_DELETED"
	EntryMembershipChanged   EntryType = "MEMBERSHIP_CHANGED"
	EntryTransformApplied    EntryType = "TRANSFORMATION_APPLIED"
	EntryTransformConflict   EntryType = "TRANSFORMATION_CONFLICT"
	EntryAdapterDispatch     EntryType = "ADAPTER_DISPATCH"
	EntryAdapterDispatchFail EntryType = "ADAPTER_DISPATCH_FAILED"
)

// defaultTTL is spec.md §6's audit-record default retention: 90 days.
const defaultTTL = 7_776_000 * time.Second

// Entry is the AuditLogEntry record spec.md §3/§6 names: persisted by
// whatever backs AuditSink, never read back by the core.
type Entry struct {
	ID         string
	TenantID   string
	Type       EntryType
	ActorID    string
	ActorType  string
	ProviderID string
	ResourceID string
	Detail     string
	OccurredAt time.Time
	TTL        time.Duration
}

// NewEntry fills OccurredAt and the default TTL.
func NewEntry(tenantID string, t EntryType, detail string) Entry {
	return Entry{
		TenantID:   tenantID,
		Type:       t,
		Detail:     detail,
		OccurredAt: time.Now(),
		TTL:        defaultTTL,
	}
}

// Sink is the AuditSink interface spec.md §6 names.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// logger is the minimal surface audit needs from internal/logging,
// avoiding a hard dependency on a concrete logger type.
type logger interface {
	Error(msg string, args ...any)
}

// BestEffortSink wraps a Sink so Write never returns an error to the
// caller: failures are logged and swallowed, per spec.md §6's "best-
// effort, non-blocking from the core's perspective".
type BestEffortSink struct {
	sink Sink
	log  logger
}

func NewBestEffortSink(sink Sink, log logger) *BestEffortSink {
	return &BestEffortSink{sink: sink, log: log}
}

// Write never blocks the caller on a slow or failing sink for longer than
// a short grace period, and never surfaces an error.
func (b *BestEffortSink) Write(ctx context.Context, entry Entry) {
	if b.sink == nil {
		return
	}
	const gracePeriod = 250 * time.Millisecond
	done := make(chan error, 1)
	go func() { done <- b.sink.Write(ctx, entry) }()
	select {
	case err := <-done:
		if err != nil && b.log != nil {
			b.log.Error("audit write failed", "type", entry.Type, "tenant", entry.TenantID, "error", err)
		}
	case <-time.After(gracePeriod):
		if b.log != nil {
			b.log.Error("audit write exceeded grace period", "type", entry.Type, "tenant", entry.TenantID)
		}
	}
}

// NopSink discards every entry; used where no audit backend is
// configured (tests, the zero-value gateway).
type NopSink struct{}

func (NopSink) Write(ctx context.Context, entry Entry) error { return nil }
