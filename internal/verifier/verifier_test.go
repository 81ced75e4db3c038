package verifier_test

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/val-protocol/val-verify/internal/mirror"
	"github.com/val-protocol/val-verify/internal/verifier"
)

// ── Log builders ─────────────────────────────────────────────────────────────

func msg(seq int64, ts, envelope string) mirror.RawTopicMessage {
	return mirror.RawTopicMessage{
		SequenceNumber:     seq,
		ConsensusTimestamp: ts,
		Message:            base64.StdEncoding.EncodeToString([]byte(envelope)),
		TopicID:            "0.0.5005",
	}
}

func rawMsg(seq int64, ts, body string) mirror.RawTopicMessage {
	return mirror.RawTopicMessage{SequenceNumber: seq, ConsensusTimestamp: ts, Message: body}
}

func creation(hash string) string {
	return fmt.Sprintf(`{"val":"1.0","type":"agent.create","ts":"2024-01-01T00:00:00Z","agent":"0.0.5005",
		"data":{"soul_hash":%q,"name":"researcher","capabilities":["search"]}}`, hash)
}

func action(status string) string {
	return fmt.Sprintf(`{"val":"1.0","type":"action","ts":"2024-01-01T00:01:00Z","agent":"0.0.5005",
		"data":{"tool":"web_search","status":%q,"input_hash":"sha256:in","output_hash":"sha256:out"}}`, status)
}

func soulVerify(hash string, matched bool) string {
	return fmt.Sprintf(`{"val":"1.0","type":"soul.verify","ts":"2024-01-01T00:02:00Z","agent":"0.0.5005",
		"data":{"soul_hash":%q,"matched":%t}}`, hash, matched)
}

func heartbeat(status string) string {
	return fmt.Sprintf(`{"val":"1.0","type":"heartbeat","ts":"2024-01-01T00:03:00Z","agent":"0.0.5005",
		"data":{"status":%q}}`, status)
}

func verify(t *testing.T, msgs ...mirror.RawTopicMessage) *verifier.Report {
	t.Helper()
	return verifier.Run(verifier.BuildSnapshot("0.0.5005", msgs))
}

func hasIssue(r *verifier.Report, code string) bool {
	for _, is := range r.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

func countIssues(r *verifier.Report, code string) int {
	n := 0
	for _, is := range r.Issues {
		if is.Code == code {
			n++
		}
	}
	return n
}

// ── Whole-log verdicts ───────────────────────────────────────────────────────

func TestRun_cleanLogPasses(t *testing.T) {
	r := verify(t,
		msg(1, "1726000000.000000001", creation("sha256:abc")),
		msg(2, "1726000060.000000002", action("success")),
		msg(3, "1726000120.000000003", soulVerify("sha256:abc", true)),
		msg(4, "1726000180.000000004", heartbeat("active")),
	)

	if r.Verdict != verifier.VerdictPass {
		t.Fatalf("verdict: got %q, want pass; issues: %+v", r.Verdict, r.Issues)
	}
	if len(r.Issues) != 0 {
		t.Errorf("expected no issues, got %+v", r.Issues)
	}
	if r.RecordCount != 4 {
		t.Errorf("record count: got %d, want 4", r.RecordCount)
	}
	if r.TypeCounts["agent.create"] != 1 || r.TypeCounts["action"] != 1 ||
		r.TypeCounts["soul.verify"] != 1 || r.TypeCounts["heartbeat"] != 1 {
		t.Errorf("type counts: %v", r.TypeCounts)
	}
}

func TestRun_emptyLogFails(t *testing.T) {
	r := verify(t)

	if r.Verdict != verifier.VerdictFail {
		t.Fatalf("verdict: got %q, want fail", r.Verdict)
	}
	if len(r.Issues) != 1 || r.Issues[0].Code != verifier.CodeEmptyLog {
		t.Errorf("issues: %+v, want single empty_log", r.Issues)
	}
	if r.RecordCount != 0 {
		t.Errorf("record count: got %d, want 0", r.RecordCount)
	}
}

func TestRun_warnAndInfoDoNotFail(t *testing.T) {
	// Disclosed drift (info) plus an unknown kind (warn): still a pass.
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", soulVerify("sha256:abc", true)),
		msg(3, "1726000120.3", soulVerify("sha256:new", false)),
		msg(4, "1726000180.4", `{"val":"1.0","type":"custom.metric","ts":"t","agent":"0.0.5005","data":{}}`),
	)

	if r.Verdict != verifier.VerdictPass {
		t.Fatalf("verdict: got %q, want pass; issues: %+v", r.Verdict, r.Issues)
	}
	if !hasIssue(r, verifier.CodeIdentityDrift) || !hasIssue(r, verifier.CodeUnknownKind) {
		t.Errorf("expected identity_drift and unknown_kind, got %+v", r.Issues)
	}
	if r.SeverityCounts[verifier.SeverityFail] != 0 {
		t.Errorf("fail count: got %d, want 0", r.SeverityCounts[verifier.SeverityFail])
	}
}

// ── Ordering checks ──────────────────────────────────────────────────────────

func TestRun_sequenceGap(t *testing.T) {
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", action("success")),
		msg(4, "1726000180.4", heartbeat("active")),
	)

	if r.Verdict != verifier.VerdictFail {
		t.Fatalf("verdict: got %q, want fail", r.Verdict)
	}
	if countIssues(r, verifier.CodeSequenceGap) != 1 {
		t.Errorf("expected exactly one sequence_gap, got %+v", r.Issues)
	}
	for _, is := range r.Issues {
		if is.Code == verifier.CodeSequenceGap && is.Sequence != 4 {
			t.Errorf("gap reported at sequence %d, want 4", is.Sequence)
		}
	}
}

func TestRun_timestampRegression(t *testing.T) {
	r := verify(t,
		msg(1, "1726000060.0", creation("sha256:abc")),
		msg(2, "1726000000.0", action("success")),
	)

	if !hasIssue(r, verifier.CodeTimestampRegression) {
		t.Fatalf("expected timestamp_regression, got %+v", r.Issues)
	}
	if r.Verdict != verifier.VerdictFail {
		t.Errorf("verdict: got %q, want fail", r.Verdict)
	}
}

func TestRun_equalTimestampsAreLegal(t *testing.T) {
	r := verify(t,
		msg(1, "1726000000.000000005", creation("sha256:abc")),
		msg(2, "1726000000.000000005", action("success")),
	)

	if hasIssue(r, verifier.CodeTimestampRegression) {
		t.Errorf("equal consensus timestamps must not be a regression: %+v", r.Issues)
	}
	if r.Verdict != verifier.VerdictPass {
		t.Errorf("verdict: got %q, want pass", r.Verdict)
	}
}

func TestRun_orderingChecksCoverUndecodableEntries(t *testing.T) {
	// The junk entry occupies sequence 2; the gap to 4 must still be seen.
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		rawMsg(2, "1726000060.2", "!!! junk !!!"),
		msg(4, "1726000180.4", heartbeat("active")),
	)

	if !hasIssue(r, verifier.CodeSequenceGap) {
		t.Errorf("expected sequence_gap across undecodable entry, got %+v", r.Issues)
	}
}

// ── Creation-first ───────────────────────────────────────────────────────────

func TestRun_firstRecordNotCreation(t *testing.T) {
	r := verify(t,
		msg(1, "1726000000.1", action("success")),
		msg(2, "1726000060.2", heartbeat("active")),
	)

	if !hasIssue(r, verifier.CodeFirstNotCreation) {
		t.Fatalf("expected first_record_not_creation, got %+v", r.Issues)
	}
	if r.Verdict != verifier.VerdictFail {
		t.Errorf("verdict: got %q, want fail", r.Verdict)
	}
}

func TestRun_undecodableFirstRecord(t *testing.T) {
	r := verify(t,
		rawMsg(1, "1726000000.1", "not-base64!"),
		msg(2, "1726000060.2", heartbeat("active")),
	)

	if !hasIssue(r, verifier.CodeFirstNotCreation) {
		t.Errorf("undecodable first record cannot establish creation-first: %+v", r.Issues)
	}
	if !hasIssue(r, verifier.CodeDecodeFailures) {
		t.Errorf("expected aggregated decode_failures warn: %+v", r.Issues)
	}
}

// ── Structure checks ─────────────────────────────────────────────────────────

func TestRun_missingRequiredFields(t *testing.T) {
	tests := []struct {
		name     string
		envelope string
		want     int // missing_field issues expected on that record
	}{
		{
			"creation without name, soul_hash, capabilities",
			`{"val":"1.0","type":"agent.create","ts":"t","agent":"a","data":{}}`,
			3,
		},
		{
			"action without tool and status",
			`{"val":"1.0","type":"action","ts":"t","agent":"a","data":{}}`,
			2,
		},
		{
			"soul.verify without matched",
			`{"val":"1.0","type":"soul.verify","ts":"t","agent":"a","data":{"soul_hash":"h"}}`,
			1,
		},
		{
			"heartbeat without status",
			`{"val":"1.0","type":"heartbeat","ts":"t","agent":"a","data":{}}`,
			1,
		},
		{
			"envelope without ts and agent",
			`{"val":"1.0","type":"heartbeat","data":{"status":"active"}}`,
			2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := verify(t,
				msg(1, "1726000000.1", creation("sha256:abc")),
				msg(2, "1726000060.2", tt.envelope),
			)
			if got := countIssues(r, verifier.CodeMissingField); got != tt.want {
				t.Errorf("missing_field issues: got %d, want %d; issues: %+v", got, tt.want, r.Issues)
			}
			if r.Verdict != verifier.VerdictFail {
				t.Errorf("verdict: got %q, want fail", r.Verdict)
			}
		})
	}
}

func TestRun_invalidEnumValues(t *testing.T) {
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", action("started")), // legacy value, no longer legal
		msg(3, "1726000120.3", heartbeat("sleeping")),
	)

	if countIssues(r, verifier.CodeInvalidField) != 2 {
		t.Errorf("expected invalid_field for action and heartbeat status, got %+v", r.Issues)
	}
	if r.Verdict != verifier.VerdictFail {
		t.Errorf("verdict: got %q, want fail", r.Verdict)
	}
}

func TestRun_protocolVersion(t *testing.T) {
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", `{"val":"2.0","type":"heartbeat","ts":"t","agent":"a","data":{"status":"active"}}`),
	)
	if !hasIssue(r, verifier.CodeProtocolVersion) {
		t.Errorf("expected protocol_version issue, got %+v", r.Issues)
	}

	// Absent val is a missing field, not a version mismatch.
	r = verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", `{"type":"heartbeat","ts":"t","agent":"a","data":{"status":"active"}}`),
	)
	if hasIssue(r, verifier.CodeProtocolVersion) {
		t.Errorf("missing val must not report protocol_version: %+v", r.Issues)
	}
	if !hasIssue(r, verifier.CodeMissingField) {
		t.Errorf("expected missing_field for absent val: %+v", r.Issues)
	}
}

// ── Decode-failure tolerance ─────────────────────────────────────────────────

func TestRun_decodeFailuresAggregateToOneWarn(t *testing.T) {
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		rawMsg(2, "1726000060.2", "junk-one"),
		rawMsg(3, "1726000120.3", "junk-two"),
		msg(4, "1726000180.4", heartbeat("active")),
	)

	if r.Verdict != verifier.VerdictPass {
		t.Fatalf("decode failures alone must not fail the log; issues: %+v", r.Issues)
	}
	if countIssues(r, verifier.CodeDecodeFailures) != 1 {
		t.Errorf("expected one aggregated decode_failures warn, got %+v", r.Issues)
	}
	if r.RecordCount != 4 {
		t.Errorf("record count includes failures: got %d, want 4", r.RecordCount)
	}
	if r.TypeCounts["heartbeat"] != 1 || r.TypeCounts["agent.create"] != 1 {
		t.Errorf("type counts cover decoded records only: %v", r.TypeCounts)
	}
}

// ── Identity tracking ────────────────────────────────────────────────────────

func TestRun_identityDriftDisclosed(t *testing.T) {
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", soulVerify("sha256:abc", true)),
		msg(3, "1726000120.3", soulVerify("sha256:changed", false)),
	)

	if r.Verdict != verifier.VerdictPass {
		t.Fatalf("disclosed drift must not fail; issues: %+v", r.Issues)
	}
	if !hasIssue(r, verifier.CodeIdentityDrift) {
		t.Errorf("expected identity_drift info, got %+v", r.Issues)
	}
	if hasIssue(r, verifier.CodeIdentityMismatch) {
		t.Errorf("honest self-report must not draw identity_mismatch: %+v", r.Issues)
	}
}

func TestRun_identityMismatchOnDishonestReport(t *testing.T) {
	// Hash changed but the agent claims matched:true — both warn and info.
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", soulVerify("sha256:abc", true)),
		msg(3, "1726000120.3", soulVerify("sha256:changed", true)),
	)

	if !hasIssue(r, verifier.CodeIdentityMismatch) {
		t.Errorf("expected identity_mismatch warn, got %+v", r.Issues)
	}
	if !hasIssue(r, verifier.CodeIdentityDrift) {
		t.Errorf("drift is still disclosed via the engine comparison: %+v", r.Issues)
	}
	if r.Verdict != verifier.VerdictPass {
		t.Errorf("warnings alone keep the verdict at pass, got %q", r.Verdict)
	}
}

func TestRun_identityMatchedFalseWithoutChange(t *testing.T) {
	// matched:false while the hash is unchanged: inconsistent self-report,
	// no drift.
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", soulVerify("sha256:abc", true)),
		msg(3, "1726000120.3", soulVerify("sha256:abc", false)),
	)

	if !hasIssue(r, verifier.CodeIdentityMismatch) {
		t.Errorf("expected identity_mismatch, got %+v", r.Issues)
	}
	if hasIssue(r, verifier.CodeIdentityDrift) {
		t.Errorf("unchanged hash must not report drift: %+v", r.Issues)
	}
}

func TestRun_firstIdentityCheckSeedsSilently(t *testing.T) {
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", soulVerify("sha256:whatever", true)),
	)

	if hasIssue(r, verifier.CodeIdentityDrift) || hasIssue(r, verifier.CodeIdentityMismatch) {
		t.Errorf("first soul.verify has no prior state to judge against: %+v", r.Issues)
	}
}

func TestRun_malformedIdentityCheckSkipsTracker(t *testing.T) {
	// Sequence 2 lacks `matched`, so it must not seed the tracker; the later
	// record at sequence 3 becomes the first observation.
	r := verify(t,
		msg(1, "1726000000.1", creation("sha256:abc")),
		msg(2, "1726000060.2", `{"val":"1.0","type":"soul.verify","ts":"t","agent":"a","data":{"soul_hash":"sha256:poison"}}`),
		msg(3, "1726000120.3", soulVerify("sha256:abc", true)),
	)

	if hasIssue(r, verifier.CodeIdentityDrift) || hasIssue(r, verifier.CodeIdentityMismatch) {
		t.Errorf("malformed record must not feed the tracker: %+v", r.Issues)
	}
	if !hasIssue(r, verifier.CodeMissingField) {
		t.Errorf("expected missing_field for the malformed record: %+v", r.Issues)
	}
}
