// Package verifier runs the structural verification battery over an assembled
// attestation log snapshot: sequence continuity, consensus-time monotonicity,
// the creation-first invariant, per-kind required fields, and identity-hash
// drift tracking. The pass is pure and deterministic: it collects issues, it
// never aborts mid-log.
package verifier

// Severity classifies a verification issue.
type Severity string

const (
	SeverityFail Severity = "fail" // structural violation; fails the verdict
	SeverityWarn Severity = "warn" // suspicious but not conclusive
	SeverityInfo Severity = "info" // disclosed, expected events
)

// Issue codes. Stable identifiers for programmatic consumers; messages are
// for humans.
const (
	CodeEmptyLog            = "empty_log"
	CodeFirstNotCreation    = "first_record_not_creation"
	CodeSequenceGap         = "sequence_gap"
	CodeTimestampRegression = "timestamp_regression"
	CodeMissingField        = "missing_field"
	CodeInvalidField        = "invalid_field"
	CodeProtocolVersion     = "protocol_version"
	CodeUnknownKind         = "unknown_kind"
	CodeDecodeFailures      = "decode_failures"
	CodeIdentityDrift       = "identity_drift"
	CodeIdentityMismatch    = "identity_mismatch"
)

// Issue is a single structured finding from a verification pass.
// Sequence is 0 for whole-log findings (empty log, aggregated decode count).
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Sequence int64    `json:"sequence,omitempty"`
}
