package attestation

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// envelope mirrors the VAL v1 wire object. Data stays raw until the kind is
// known so a single malformed variant field surfaces as a payload error with
// the envelope intact.
type envelope struct {
	Val   string          `json:"val"`
	Type  string          `json:"type"`
	TS    string          `json:"ts"`
	Agent string          `json:"agent"`
	Data  json.RawMessage `json:"data"`
	Sig   string          `json:"sig"`
}

// Decode turns one raw topic message into a Record or a DecodeFailure.
// Decode never returns both; a nil failure means the record is usable.
//
// seq and consensusTS come from the consensus source (the mirror message
// wrapper), message is the base64-encoded envelope. Missing or malformed
// envelope fields do not fail the decode — they are the Verifier's concern —
// but undecodable base64, invalid JSON, and variant payloads of the wrong
// shape do.
func Decode(seq int64, consensusTS, message string) (*Record, *DecodeFailure) {
	fail := func(format string, args ...any) (*Record, *DecodeFailure) {
		return nil, &DecodeFailure{
			Sequence:  seq,
			RawLength: len(message),
			Reason:    fmt.Sprintf(format, args...),
		}
	}

	raw, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return fail("base64: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fail("envelope: %v", err)
	}

	ct, err := ParseConsensusTimestamp(consensusTS)
	if err != nil {
		return fail("consensus timestamp %q: %v", consensusTS, err)
	}

	rec := &Record{
		Sequence:      seq,
		ConsensusTime: ct,
		Version:       env.Val,
		Kind:          ParseKind(env.Type),
		WireType:      env.Type,
		ProducerTS:    env.TS,
		AgentID:       env.Agent,
		Signature:     env.Sig,
	}

	switch rec.Kind {
	case KindCreation:
		var p CreationPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return fail("agent.create payload: %v", err)
		}
		rec.Creation = &p
	case KindAction:
		var p ActionPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return fail("action payload: %v", err)
		}
		rec.Action = &p
	case KindIdentityCheck:
		var p IdentityCheckPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return fail("soul.verify payload: %v", err)
		}
		rec.IdentityCheck = &p
	case KindHeartbeat:
		var p HeartbeatPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return fail("heartbeat payload: %v", err)
		}
		rec.Heartbeat = &p
	default:
		// Unknown kind: keep the data opaque; type-specific validation is
		// skipped downstream.
		rec.RawData = env.Data
	}

	return rec, nil
}

// unmarshalData decodes a variant payload. An absent `data` field decodes to
// the zero payload so the missing-field checks report precisely which fields
// are absent instead of one opaque decode failure.
func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

// ParseConsensusTimestamp parses the consensus source's "<seconds>.<nanos>"
// notation (e.g. "1726000000.000000123") into a UTC time. A bare seconds
// value without the fractional part is accepted.
func ParseConsensusTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	secPart, nanoPart, found := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("seconds: %w", err)
	}

	var nanos int64
	if found {
		// Right-pad so "1.5" means 500ms, matching the source's fixed-width
		// nanosecond field.
		if len(nanoPart) > 9 {
			nanoPart = nanoPart[:9]
		}
		nanoPart += strings.Repeat("0", 9-len(nanoPart))
		nanos, err = strconv.ParseInt(nanoPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("nanos: %w", err)
		}
	}
	return time.Unix(sec, nanos).UTC(), nil
}
