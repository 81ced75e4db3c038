// Package attestation defines the VAL v1 attestation record model and the
// decoder that turns raw topic messages into typed records.
//
// A VAL record travels as a base64-encoded UTF-8 JSON envelope:
//
//	{"val":"1.0","type":"action","ts":"...","agent":"0.0.12345","data":{...},"sig":"..."}
//
// The sequence number and consensus timestamp are not part of the envelope;
// they are assigned by the consensus source and delivered alongside it by the
// retrieval layer.
package attestation

import (
	"encoding/json"
	"time"
)

// ProtocolVersion is the only envelope version this engine accepts.
const ProtocolVersion = "1.0"

// MaxMessageBytes is the transport bound on a serialized record. Producers
// must stay under it; the decoder still parses oversized payloads.
const MaxMessageBytes = 1024

// Kind is the closed set of record variants.
type Kind string

const (
	KindCreation      Kind = "agent.create"
	KindAction        Kind = "action"
	KindIdentityCheck Kind = "soul.verify"
	KindHeartbeat     Kind = "heartbeat"
	KindUnknown       Kind = "unknown"
)

// ParseKind maps a wire `type` value to a Kind. Unrecognised values map to
// KindUnknown rather than failing the decode.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindCreation, KindAction, KindIdentityCheck, KindHeartbeat:
		return Kind(s)
	default:
		return KindUnknown
	}
}

// Record is one decoded attestation log entry.
// Exactly one of the payload pointers matching Kind is non-nil; for
// KindUnknown all payload pointers are nil and RawData holds the `data` field
// as delivered.
type Record struct {
	Sequence      int64     `json:"sequence"`
	ConsensusTime time.Time `json:"consensus_time"`
	Version       string    `json:"val"`
	Kind          Kind      `json:"kind"`
	WireType      string    `json:"type"` // original `type` value, kept for unknown kinds
	ProducerTS    string    `json:"ts"`   // self-reported by the producer; informational only
	AgentID       string    `json:"agent"`
	Signature     string    `json:"sig,omitempty"` // reserved, unverified in v1

	Creation      *CreationPayload      `json:"creation,omitempty"`
	Action        *ActionPayload        `json:"action,omitempty"`
	IdentityCheck *IdentityCheckPayload `json:"identity_check,omitempty"`
	Heartbeat     *HeartbeatPayload     `json:"heartbeat,omitempty"`
	RawData       json.RawMessage       `json:"raw_data,omitempty"`
}

// CreationPayload is the data of an agent.create record — the first record on
// any well-formed topic.
type CreationPayload struct {
	Name         string   `json:"name"`
	IdentityHash string   `json:"soul_hash"`
	Capabilities []string `json:"capabilities"`
	Creator      string   `json:"creator,omitempty"`
	Framework    string   `json:"framework,omitempty"`
}

// ActionStatuses is the closed set of legal action outcomes.
var ActionStatuses = map[string]bool{
	"success": true,
	"failure": true,
	"error":   true,
}

// ActionPayload is the data of an action record: one tool invocation with
// hashed inputs and outputs.
type ActionPayload struct {
	Tool        string `json:"tool"`
	Status      string `json:"status"`
	InputHash   string `json:"input_hash,omitempty"`
	OutputHash  string `json:"output_hash,omitempty"`
	ContextHash string `json:"context_hash,omitempty"`
	Description string `json:"desc,omitempty"`
}

// IdentityCheckPayload is the data of a soul.verify record: the agent's
// self-reported identity hash comparison.
// Matched is a pointer so a missing field is distinguishable from false.
type IdentityCheckPayload struct {
	IdentityHash string            `json:"soul_hash"`
	Matched      *bool             `json:"matched"`
	FileHashes   map[string]string `json:"file_hashes,omitempty"`
}

// HeartbeatStatuses is the closed set of legal heartbeat states.
var HeartbeatStatuses = map[string]bool{
	"active":   true,
	"idle":     true,
	"degraded": true,
	"shutdown": true,
}

// HeartbeatPayload is the data of a heartbeat record.
type HeartbeatPayload struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	HeartbeatSeq  int64  `json:"heartbeat_seq,omitempty"`
}

// DecodeFailure describes a raw message that could not be decoded into a
// Record. Failures are retained in-sequence so ordering checks still see
// their position.
type DecodeFailure struct {
	Sequence  int64  `json:"sequence"`
	RawLength int    `json:"raw_length"`
	Reason    string `json:"reason"`
}
