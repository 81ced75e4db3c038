package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/val-protocol/val-verify/internal/attestation"
	"github.com/val-protocol/val-verify/internal/mirror"
	"github.com/val-protocol/val-verify/internal/server/handler"
	"github.com/val-protocol/val-verify/internal/verifier"
	"github.com/val-protocol/val-verify/pkg/client"
	"go.uber.org/zap"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	mirrorURL string
	network   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "val",
	Short: "VAL attestation log verifier",
	Long: `val verifies agent attestation logs anchored on Hedera consensus topics.

It fetches a topic's full message history from a mirror node, decodes the
VAL envelopes, and checks ordering, structure, and identity continuity,
producing a pass/fail report.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.val")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if network == "" {
			network = viper.GetString("network")
		}
		if network == "" {
			network = "testnet"
		}
		if mirrorURL == "" {
			mirrorURL = viper.GetString("mirror_url")
		}
		if mirrorURL == "" {
			mirrorURL = mirror.BaseURLForNetwork(network)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.val/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&mirrorURL, "mirror", "", "mirror node base URL (overrides --network)")
	rootCmd.PersistentFlags().StringVar(&network, "network", "", "Hedera network: mainnet or testnet (default testnet)")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// newFetcher builds a mirror client with a quiet logger for CLI use.
func newFetcher() *mirror.Client {
	logger := zap.NewNop()
	if os.Getenv("VAL_DEBUG") != "" {
		logger, _ = zap.NewDevelopment()
	}
	return mirror.NewClient(mirrorURL, logger)
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifyFormat  string
	verifyTimeout time.Duration
	verifyLimit   int
)

var verifyCmd = &cobra.Command{
	Use:   "verify <topic-id>",
	Short: "Fetch and verify an agent's attestation log",
	Long: `Verify fetches the complete message history of an attestation topic and
runs the full check suite: sequence contiguity, timestamp ordering,
creation-first, per-type structure, and identity-hash continuity.

Exit code is 0 on a pass verdict, 1 on fail or error.

  val verify 0.0.12345
  val verify --network mainnet --format json 0.0.12345`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFormat, "format", "text", "Output format: text or json")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 2*time.Minute, "Overall fetch timeout; on expiry the partial log is verified and marked incomplete")
	verifyCmd.Flags().IntVar(&verifyLimit, "limit", 0, "Maximum messages to fetch (0 = all)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	topicID := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	msgs, incomplete, err := mirror.FetchAll(ctx, newFetcher(), topicID, verifyLimit)
	if err != nil {
		return fmt.Errorf("fetch topic %s: %w", topicID, err)
	}

	report := verifier.Run(verifier.BuildSnapshot(topicID, msgs))
	report.Incomplete = incomplete

	if verifyFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(topicID, report)
	}

	if report.Verdict != verifier.VerdictPass {
		// Distinguish "verified and failed" from CLI errors in scripts.
		os.Exit(1)
	}
	return nil
}

func printReport(topicID string, report *verifier.Report) {
	mark := "✓"
	if report.Verdict != verifier.VerdictPass {
		mark = "✗"
	}
	fmt.Printf("%s %s — verdict: %s\n\n", mark, topicID, report.Verdict)
	fmt.Printf("  Records:    %d\n", report.RecordCount)
	if report.Incomplete {
		fmt.Printf("  Incomplete: yes (fetch stopped early; verdict covers fetched records only)\n")
	}
	for kind, n := range report.TypeCounts {
		fmt.Printf("  %-11s %d\n", kind+":", n)
	}

	if len(report.Issues) == 0 {
		fmt.Println("\nNo issues found.")
		return
	}

	fmt.Printf("\nIssues (%d):\n\n", len(report.Issues))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tCODE\tSEQ\tMESSAGE")
	for _, is := range report.Issues {
		seq := ""
		if is.Sequence != 0 {
			seq = fmt.Sprintf("%d", is.Sequence)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", is.Severity, is.Code, seq, is.Message)
	}
	w.Flush() //nolint:errcheck
}

// ── fetch ────────────────────────────────────────────────────────────────────

var (
	fetchLimit int
	fetchRaw   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <topic-id>",
	Short: "Fetch and decode a topic's messages without verifying",
	Long: `Fetch dumps an attestation topic's messages as JSON, one record per line.

With --raw the base64 message bodies are printed as stored on the mirror
node; otherwise each message is decoded into its envelope fields.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topicID := args[0]

		msgs, incomplete, err := mirror.FetchAll(context.Background(), newFetcher(), topicID, fetchLimit)
		if err != nil {
			return fmt.Errorf("fetch topic %s: %w", topicID, err)
		}

		enc := json.NewEncoder(os.Stdout)
		for _, m := range msgs {
			if fetchRaw {
				if err := enc.Encode(m); err != nil {
					return err
				}
				continue
			}
			rec, fail := attestation.Decode(m.SequenceNumber, m.ConsensusTimestamp, m.Message)
			if fail != nil {
				if err := enc.Encode(fail); err != nil {
					return err
				}
				continue
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		if incomplete {
			fmt.Fprintln(os.Stderr, "warning: fetch stopped early; output is a partial log")
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "Maximum messages to fetch (0 = all)")
	fetchCmd.Flags().BoolVar(&fetchRaw, "raw", false, "Print raw base64 message bodies instead of decoded records")
}

// ── runs ─────────────────────────────────────────────────────────────────────

var (
	serverURL    string
	runsAgentID  string
	runsLimit    int
	runsShowJSON bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored verification runs on a vald server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}
		list, err := c.ListRuns(context.Background(), runsAgentID, runsLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		if runsShowJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAGENT\tVERDICT\tRECORDS\tISSUES\tFINISHED")
		for _, r := range list {
			verdict, records, issues := "", 0, 0
			if r.Report != nil {
				verdict = string(r.Report.Verdict)
				records = r.Report.RecordCount
				issues = len(r.Report.Issues)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				r.ID, r.AgentID, verdict, records, issues,
				r.FinishedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "vald server base URL")
	runsCmd.Flags().StringVar(&runsAgentID, "agent", "", "Filter runs by agent topic ID")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "Maximum runs to list")
	runsCmd.Flags().BoolVar(&runsShowJSON, "json", false, "Print runs as JSON")
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSecret string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin bearer token for a vald server",
	Long: `Token signs a short-lived admin JWT with the server's shared secret,
for use with the admin-only endpoints (e.g. DELETE /runs/:id).

The secret is read from --secret or the VALD_ADMIN_SECRET env var.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := tokenSecret
		if secret == "" {
			secret = os.Getenv("VALD_ADMIN_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("no admin secret: use --secret or set VALD_ADMIN_SECRET")
		}
		token, err := handler.IssueAdminToken(secret, tokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Admin shared secret (or VALD_ADMIN_SECRET)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the val CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("val %s (protocol %s)\n", version, attestation.ProtocolVersion)
	},
}
