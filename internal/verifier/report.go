package verifier

// Verdict is the overall outcome of a verification run.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// Report is the aggregated result of one verification pass.
//
// The verdict is Pass iff there are zero Fail-severity issues; Warn and Info
// never affect it. RecordCount counts every snapshot entry, decode failures
// included. TypeCounts counts decoded records per kind. Incomplete marks a
// best-effort run over a partial snapshot (cancelled fetch) — it is metadata,
// not a severity: an intentionally cancelled fetch is not evidence of
// tampering.
type Report struct {
	Verdict        Verdict          `json:"verdict"`
	RecordCount    int              `json:"record_count"`
	Issues         []Issue          `json:"issues"`
	TypeCounts     map[string]int   `json:"type_counts"`
	SeverityCounts map[Severity]int `json:"severity_counts"`
	Incomplete     bool             `json:"incomplete"`
}

// buildReport aggregates issues into a Report. Pure and deterministic: no
// I/O, same issues in, same report out.
func buildReport(snap *Snapshot, issues []Issue) *Report {
	r := &Report{
		Verdict:        VerdictPass,
		RecordCount:    len(snap.Entries),
		Issues:         issues,
		TypeCounts:     make(map[string]int),
		SeverityCounts: make(map[Severity]int),
	}
	if issues == nil {
		r.Issues = []Issue{}
	}

	for _, e := range snap.Entries {
		if e.Record != nil {
			r.TypeCounts[string(e.Record.Kind)]++
		}
	}
	for _, is := range issues {
		r.SeverityCounts[is.Severity]++
		if is.Severity == SeverityFail {
			r.Verdict = VerdictFail
		}
	}
	return r
}
