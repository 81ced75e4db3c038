package verifier

import (
	"fmt"

	"github.com/val-protocol/val-verify/internal/attestation"
)

// identityTracker follows soul.verify records through the log and compares
// each record's self-reported match verdict against the engine's own view of
// the last tracked hash. The cross-check is what keeps a producer from lying
// about its own drift: a disclosed hash change is Info, a self-report that
// contradicts the engine's comparison is Warn.
//
// State machine: Unset → Tracked. Created fresh per verification run and
// discarded at run end; updated only by soul.verify records, in order.
type identityTracker struct {
	tracked   string
	trackedAt int64 // sequence of the record that last confirmed the hash
	set       bool
}

// observe feeds one soul.verify payload (already past its required-field
// check, so IdentityHash and Matched are populated) into the state machine
// and returns any resulting issues.
func (t *identityTracker) observe(seq int64, p *attestation.IdentityCheckPayload) []Issue {
	if !t.set {
		// No prior state to compare against: start tracking, no judgement.
		t.tracked = p.IdentityHash
		t.trackedAt = seq
		t.set = true
		return nil
	}

	var issues []Issue

	engineMatched := p.IdentityHash == t.tracked
	if *p.Matched != engineMatched {
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     CodeIdentityMismatch,
			Message: fmt.Sprintf("identity-check self-report (matched=%t) inconsistent with engine-derived comparison against hash confirmed at sequence %d",
				*p.Matched, t.trackedAt),
			Sequence: seq,
		})
	}

	if !engineMatched {
		issues = append(issues, Issue{
			Severity: SeverityInfo,
			Code:     CodeIdentityDrift,
			Message:  fmt.Sprintf("identity changed at sequence %d (disclosed drift from hash confirmed at sequence %d)", seq, t.trackedAt),
			Sequence: seq,
		})
		t.tracked = p.IdentityHash
	}
	t.trackedAt = seq

	return issues
}
