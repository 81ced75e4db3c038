package verifier

import (
	"time"

	"github.com/val-protocol/val-verify/internal/attestation"
	"github.com/val-protocol/val-verify/internal/mirror"
)

// Entry is one position in a snapshot: either a decoded record or a decode
// failure. Sequence and ConsensusTime come from the consensus source and are
// present either way, so ordering checks cover undecodable entries too.
type Entry struct {
	Sequence      int64
	ConsensusTime time.Time // zero when the mirror timestamp itself was malformed
	Record        *attestation.Record
	Failure       *attestation.DecodeFailure
}

// Snapshot is the full ordered message sequence for one agent topic as
// retrieved at a point in time. It is owned by the verification run that
// assembled it and must not be mutated afterwards. Entries are kept in
// retrieval order; the verifier never re-sorts.
type Snapshot struct {
	AgentID string
	Entries []Entry
}

// BuildSnapshot decodes raw mirror messages into a Snapshot, preserving
// order. Decode failures are retained in place.
func BuildSnapshot(agentID string, msgs []mirror.RawTopicMessage) *Snapshot {
	snap := &Snapshot{AgentID: agentID, Entries: make([]Entry, 0, len(msgs))}
	for _, m := range msgs {
		e := Entry{Sequence: m.SequenceNumber}
		if ct, err := attestation.ParseConsensusTimestamp(m.ConsensusTimestamp); err == nil {
			e.ConsensusTime = ct
		}
		e.Record, e.Failure = attestation.Decode(m.SequenceNumber, m.ConsensusTimestamp, m.Message)
		snap.Entries = append(snap.Entries, e)
	}
	return snap
}
