// Package mirror retrieves raw attestation messages from an append-only topic
// via the mirror-node REST API. It implements the paging contract the
// verification engine depends on: strictly ascending batches, an opaque
// continuation cursor, and a typed terminal FetchError kept distinct from
// verification findings.
package mirror

import (
	"context"
	"errors"
	"fmt"
)

// RawTopicMessage is one message as delivered by the mirror node. Message is
// the base64-encoded VAL envelope; the other fields are consensus-assigned.
type RawTopicMessage struct {
	ConsensusTimestamp string `json:"consensus_timestamp"`
	Message            string `json:"message"`
	SequenceNumber     int64  `json:"sequence_number"`
	TopicID            string `json:"topic_id,omitempty"`
}

// Page is one batch of messages. NextCursor is the opaque continuation token
// (the mirror's links.next path); empty means end of stream.
type Page struct {
	Messages   []RawTopicMessage
	NextCursor string
}

// Fetcher supplies ordered batches of raw topic messages. Implementations
// must return messages in ascending sequence order within and across pages.
type Fetcher interface {
	FetchPage(ctx context.Context, topicID, cursor string) (*Page, error)
}

// FetchError is a terminal retrieval failure, surfaced after retries are
// exhausted (or immediately for non-transient failures). It is never mixed
// into verification issues: a FetchError means "could not check", not
// "checked and failed".
type FetchError struct {
	TopicID string
	Status  int // HTTP status, 0 for transport-level failures
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch topic %s: HTTP %d: %v", e.TopicID, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch topic %s: %v", e.TopicID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchAll drives a Fetcher to end-of-stream, concatenating pages in order.
//
// An empty first batch is a valid empty log, not an error. Cancellation —
// between pages or mid-request — returns the messages collected so far with
// incomplete=true and a nil error, so the caller may verify the partial
// snapshot as best-effort. limit > 0 caps the total number of messages.
func FetchAll(ctx context.Context, f Fetcher, topicID string, limit int) (msgs []RawTopicMessage, incomplete bool, err error) {
	cursor := ""
	for {
		if ctx.Err() != nil {
			return msgs, true, nil
		}

		page, err := f.FetchPage(ctx, topicID, cursor)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return msgs, true, nil
			}
			return nil, false, err
		}

		msgs = append(msgs, page.Messages...)
		if limit > 0 && len(msgs) >= limit {
			// Anything beyond the cap — further pages or the tail of this
			// one — makes the snapshot partial.
			truncated := page.NextCursor != "" || len(msgs) > limit
			return msgs[:limit], truncated, nil
		}
		if page.NextCursor == "" {
			return msgs, false, nil
		}
		cursor = page.NextCursor
	}
}
