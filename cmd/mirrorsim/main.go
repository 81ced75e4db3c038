// cmd/mirrorsim — a local stand-in for a Hedera mirror node, serving
// synthetic attestation topics for development and demos.
//
// Fixture topics:
//
//	0.0.1001  clean log (create, actions, soul.verify, heartbeats) — passes
//	0.0.1002  sequence gap
//	0.0.1003  consensus timestamp regression
//	0.0.1004  identity hash drift with a matched:true self-report
//	0.0.1005  log that starts with an action instead of agent.create
//	0.0.1006  undecodable message bodies mixed into a clean log
//
// Usage:
//
//	go run ./cmd/mirrorsim
//	val verify --mirror http://localhost:5551 0.0.1001
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 5551, "listen port")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync() //nolint:errcheck

	topics := buildFixtures()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Matches the mirror node surface the verifier touches.
	router.GET("/api/v1/topics/:id/messages", serveMessages(topics))
	router.GET("/api/v1/network/nodes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"nodes": []gin.H{{"node_id": 0}}})
	})

	logger.Info("mirrorsim listening",
		zap.Int("port", *port),
		zap.Int("topics", len(topics)),
	)
	if err := router.Run(fmt.Sprintf(":%d", *port)); err != nil {
		logger.Error("listen failed", zap.Error(err))
		os.Exit(1)
	}
}

// topicMessage mirrors the mirror node's REST message shape.
type topicMessage struct {
	ConsensusTimestamp string `json:"consensus_timestamp"`
	Message            string `json:"message"`
	SequenceNumber     int64  `json:"sequence_number"`
	TopicID            string `json:"topic_id"`
}

func serveMessages(topics map[string][]topicMessage) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, ok := topics[c.Param("id")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"_status": gin.H{"messages": []gin.H{{"message": "Not found"}}},
			})
			return
		}

		limit := 25
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		from := 0
		if raw := c.Query("from"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
				from = n
			}
		}

		end := from + limit
		if end > len(msgs) {
			end = len(msgs)
		}
		page := msgs[from:end]

		next := ""
		if end < len(msgs) {
			next = fmt.Sprintf("/api/v1/topics/%s/messages?order=asc&limit=%d&from=%d",
				c.Param("id"), limit, end)
		}
		c.JSON(http.StatusOK, gin.H{
			"messages": page,
			"links":    gin.H{"next": next},
		})
	}
}

// ── Fixtures ─────────────────────────────────────────────────────────────────

// envelope builds one base64-encoded VAL message body.
func envelope(msgType string, ts string, data map[string]any) string {
	body, err := json.Marshal(map[string]any{
		"val":   "1.0",
		"type":  msgType,
		"ts":    ts,
		"agent": "did:val:mirrorsim",
		"data":  data,
		"sig":   "ed25519:c2lnbmF0dXJl",
	})
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(body)
}

type fixtureMsg struct {
	seq  int64
	ts   string
	body string
}

func topic(id string, msgs []fixtureMsg) []topicMessage {
	out := make([]topicMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, topicMessage{
			ConsensusTimestamp: m.ts,
			Message:            m.body,
			SequenceNumber:     m.seq,
			TopicID:            id,
		})
	}
	return out
}

func buildFixtures() map[string][]topicMessage {
	create := envelope("agent.create", "2023-11-14T22:13:20Z", map[string]any{
		"soul_hash":    "sha256:aaaa",
		"name":         "demo-agent",
		"capabilities": []string{"research", "summarize"},
	})
	action := func(ts, status string) string {
		return envelope("action", ts, map[string]any{
			"tool":        "web_search",
			"status":      status,
			"input_hash":  "sha256:1111",
			"output_hash": "sha256:2222",
		})
	}
	soulVerify := func(ts, hash string, matched bool) string {
		return envelope("soul.verify", ts, map[string]any{
			"soul_hash": hash,
			"matched":   matched,
		})
	}
	heartbeat := func(ts string) string {
		return envelope("heartbeat", ts, map[string]any{"status": "active"})
	}

	fixtures := map[string][]topicMessage{
		"0.0.1001": topic("0.0.1001", []fixtureMsg{
			{1, "1700000000.100000000", create},
			{2, "1700000060.000000001", action("2023-11-14T22:14:19Z", "success")},
			{3, "1700000120.000000002", soulVerify("2023-11-14T22:15:19Z", "sha256:aaaa", true)},
			{4, "1700000180.000000003", heartbeat("2023-11-14T22:16:19Z")},
			{5, "1700000240.000000004", action("2023-11-14T22:17:19Z", "failure")},
		}),
		// Sequence 3 is missing.
		"0.0.1002": topic("0.0.1002", []fixtureMsg{
			{1, "1700000000.100000000", create},
			{2, "1700000060.000000001", action("2023-11-14T22:14:19Z", "success")},
			{4, "1700000180.000000003", heartbeat("2023-11-14T22:16:19Z")},
		}),
		// Consensus time runs backwards at sequence 3.
		"0.0.1003": topic("0.0.1003", []fixtureMsg{
			{1, "1700000000.100000000", create},
			{2, "1700000060.000000001", action("2023-11-14T22:14:19Z", "success")},
			{3, "1700000030.000000000", heartbeat("2023-11-14T22:13:49Z")},
		}),
		// Hash changes at sequence 3 while the agent claims matched:true.
		"0.0.1004": topic("0.0.1004", []fixtureMsg{
			{1, "1700000000.100000000", create},
			{2, "1700000060.000000001", soulVerify("2023-11-14T22:14:19Z", "sha256:aaaa", true)},
			{3, "1700000120.000000002", soulVerify("2023-11-14T22:15:19Z", "sha256:bbbb", true)},
		}),
		"0.0.1005": topic("0.0.1005", []fixtureMsg{
			{1, "1700000000.100000000", action("2023-11-14T22:13:19Z", "success")},
			{2, "1700000060.000000001", heartbeat("2023-11-14T22:14:19Z")},
		}),
		"0.0.1006": topic("0.0.1006", []fixtureMsg{
			{1, "1700000000.100000000", create},
			{2, "1700000060.000000001", "bm90IGpzb24="}, // decodes to "not json"
			{3, "1700000120.000000002", "!!! not base64 !!!"},
			{4, "1700000180.000000003", heartbeat("2023-11-14T22:16:19Z")},
		}),
	}
	return fixtures
}
