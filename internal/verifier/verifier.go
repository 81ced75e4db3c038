package verifier

import (
	"fmt"

	"github.com/val-protocol/val-verify/internal/attestation"
)

// Run executes the full verification battery over a snapshot and returns the
// aggregated report.
//
// Single forward pass, O(n) time, O(1) memory beyond the issue list. All
// checks are independent: a failed creation check does not suppress sequence
// or timestamp checks, and issues accumulate rather than short-circuiting.
// Only the empty-snapshot precondition halts early.
func Run(snap *Snapshot) *Report {
	if len(snap.Entries) == 0 {
		return buildReport(snap, []Issue{{
			Severity: SeverityFail,
			Code:     CodeEmptyLog,
			Message:  "empty log: no records to verify",
		}})
	}

	var issues []Issue

	// Creation-first invariant. An undecodable first record cannot establish
	// it either.
	first := snap.Entries[0]
	if first.Record == nil || first.Record.Kind != attestation.KindCreation {
		got := "undecodable record"
		if first.Record != nil {
			got = fmt.Sprintf("%q", first.Record.WireType)
		}
		issues = append(issues, Issue{
			Severity: SeverityFail,
			Code:     CodeFirstNotCreation,
			Message:  fmt.Sprintf("first record must be %q, got %s", attestation.KindCreation, got),
			Sequence: first.Sequence,
		})
	}

	tracker := &identityTracker{}
	decodeFailures := 0

	for i, cur := range snap.Entries {
		if i > 0 {
			prev := snap.Entries[i-1]
			if cur.Sequence != prev.Sequence+1 {
				issues = append(issues, Issue{
					Severity: SeverityFail,
					Code:     CodeSequenceGap,
					Message:  fmt.Sprintf("sequence gap: expected %d after %d, got %d", prev.Sequence+1, prev.Sequence, cur.Sequence),
					Sequence: cur.Sequence,
				})
			}
			// Equal timestamps are legal: consensus sources may coalesce.
			// Zero times (malformed mirror timestamps) are not comparable.
			if !cur.ConsensusTime.IsZero() && !prev.ConsensusTime.IsZero() &&
				cur.ConsensusTime.Before(prev.ConsensusTime) {
				issues = append(issues, Issue{
					Severity: SeverityFail,
					Code:     CodeTimestampRegression,
					Message: fmt.Sprintf("consensus timestamp regression: %s is before %s at the previous record",
						cur.ConsensusTime.Format("2006-01-02T15:04:05.000000000Z"),
						prev.ConsensusTime.Format("2006-01-02T15:04:05.000000000Z")),
					Sequence: cur.Sequence,
				})
			}
		}

		if cur.Failure != nil {
			decodeFailures++
			continue
		}

		fieldIssues := checkRecord(cur.Record)
		issues = append(issues, fieldIssues...)

		// Records that fail their required-field set are excluded from
		// further type-specific processing, including identity tracking.
		if cur.Record.Kind == attestation.KindIdentityCheck && !hasFail(fieldIssues) {
			issues = append(issues, tracker.observe(cur.Record.Sequence, cur.Record.IdentityCheck)...)
		}
	}

	if decodeFailures > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     CodeDecodeFailures,
			Message:  fmt.Sprintf("%d of %d messages could not be decoded", decodeFailures, len(snap.Entries)),
		})
	}

	return buildReport(snap, issues)
}

// checkRecord validates the envelope fields and the kind's required-field set
// from the variant table. Unknown kinds draw a Warn and skip variant checks.
func checkRecord(rec *attestation.Record) []Issue {
	var issues []Issue

	missing := func(field string) {
		issues = append(issues, Issue{
			Severity: SeverityFail,
			Code:     CodeMissingField,
			Message:  fmt.Sprintf("missing required field %q", field),
			Sequence: rec.Sequence,
		})
	}
	invalid := func(field, got, want string) {
		issues = append(issues, Issue{
			Severity: SeverityFail,
			Code:     CodeInvalidField,
			Message:  fmt.Sprintf("invalid %s %q: must be one of %s", field, got, want),
			Sequence: rec.Sequence,
		})
	}

	switch {
	case rec.Version == "":
		missing("val")
	case rec.Version != attestation.ProtocolVersion:
		issues = append(issues, Issue{
			Severity: SeverityFail,
			Code:     CodeProtocolVersion,
			Message:  fmt.Sprintf("unsupported protocol version %q, engine supports %q", rec.Version, attestation.ProtocolVersion),
			Sequence: rec.Sequence,
		})
	}
	if rec.ProducerTS == "" {
		missing("ts")
	}
	if rec.AgentID == "" {
		missing("agent")
	}

	switch rec.Kind {
	case attestation.KindCreation:
		p := rec.Creation
		if p.Name == "" {
			missing("name")
		}
		if p.IdentityHash == "" {
			missing("soul_hash")
		}
		if p.Capabilities == nil {
			missing("capabilities")
		}

	case attestation.KindAction:
		p := rec.Action
		if p.Tool == "" {
			missing("tool")
		}
		if p.Status == "" {
			missing("status")
		} else if !attestation.ActionStatuses[p.Status] {
			invalid("action status", p.Status, "success|failure|error")
		}

	case attestation.KindIdentityCheck:
		p := rec.IdentityCheck
		if p.IdentityHash == "" {
			missing("soul_hash")
		}
		if p.Matched == nil {
			missing("matched")
		}

	case attestation.KindHeartbeat:
		p := rec.Heartbeat
		if p.Status == "" {
			missing("status")
		} else if !attestation.HeartbeatStatuses[p.Status] {
			invalid("heartbeat status", p.Status, "active|idle|degraded|shutdown")
		}

	default:
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     CodeUnknownKind,
			Message:  fmt.Sprintf("unknown record type %q: type-specific checks skipped", rec.WireType),
			Sequence: rec.Sequence,
		})
	}

	return issues
}

func hasFail(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityFail {
			return true
		}
	}
	return false
}
