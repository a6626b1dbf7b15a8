package migrator

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nimbusworks/nimbus-migrate/pkg/transform"
)

// PhaseStats counts the fate of every source row a phase processed. The
// counters always reconcile: Processed equals Inserted plus the three skip
// buckets, so a row can never silently vanish from the accounting.
type PhaseStats struct {
	Processed        int64
	Inserted         int64
	SkippedNoOwner   int64
	SkippedDuplicate int64
	SkippedMalformed int64

	// Flags tallies data-quality fallbacks on rows that still migrated.
	Flags map[string]int64
}

// Skip records one skipped row. Structurally incomplete rows count as
// malformed: from an operator's standpoint both mean "the source row could
// not be expressed in the target shape".
func (s *PhaseStats) Skip(reason transform.SkipReason) {
	switch reason {
	case transform.SkipNoOwner:
		s.SkippedNoOwner++
	default:
		s.SkippedMalformed++
	}
}

// Flag tallies data-quality flags from one transformed row.
func (s *PhaseStats) Flag(flags []string) {
	if len(flags) == 0 {
		return
	}
	if s.Flags == nil {
		s.Flags = make(map[string]int64)
	}
	for _, f := range flags {
		s.Flags[f]++
	}
}

// Reconciles reports whether the counters balance.
func (s *PhaseStats) Reconciles() bool {
	return s.Processed == s.Inserted+s.SkippedNoOwner+s.SkippedDuplicate+s.SkippedMalformed
}

// Fields renders the counters for structured logging.
func (s *PhaseStats) Fields() []zap.Field {
	fields := []zap.Field{
		zap.Int64("processed", s.Processed),
		zap.Int64("inserted", s.Inserted),
		zap.Int64("skipped_no_owner", s.SkippedNoOwner),
		zap.Int64("skipped_duplicate", s.SkippedDuplicate),
		zap.Int64("skipped_malformed", s.SkippedMalformed),
	}
	if len(s.Flags) > 0 {
		fields = append(fields, zap.Object("flags", flagMarshaler(s.Flags)))
	}
	return fields
}

type flagMarshaler map[string]int64

func (f flagMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for k, v := range f {
		enc.AddInt64(k, v)
	}
	return nil
}

// Stats is the full run summary across all phases.
type Stats struct {
	Users         PhaseStats
	Folders       PhaseStats
	Documents     PhaseStats
	Conversations PhaseStats
	Chunks        PhaseStats

	// Messages and Embeddings count child rows written under inserted
	// conversations and chunks.
	Messages   int64
	Embeddings int64

	StartedAt  time.Time
	FinishedAt time.Time
}

// Reconciles reports whether every phase's counters balance.
func (s *Stats) Reconciles() bool {
	for _, p := range []*PhaseStats{&s.Users, &s.Folders, &s.Documents, &s.Conversations, &s.Chunks} {
		if !p.Reconciles() {
			return false
		}
	}
	return true
}
