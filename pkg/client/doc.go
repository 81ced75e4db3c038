// Package client is the Go SDK for the VAL verification service (vald).
//
// It wraps vald's REST API: triggering verification runs against a mirror
// node, verifying offline snapshots, and querying stored reports.
//
// # Verifying an agent's attestation log
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	run, err := c.Verify(ctx, "0.0.12345", 0)
//	fmt.Println(run.Report.Verdict) // pass or fail
//
// # Offline snapshot verification
//
// When the raw topic messages are already in hand (exported from a mirror
// node, or captured by 'val fetch --raw'), verify them without the server
// touching the network:
//
//	report, err := c.VerifySnapshot(ctx, "0.0.12345", msgs)
//
// # Querying stored runs
//
//	runs, err := c.ListRuns(ctx, "0.0.12345", 20)
//	run, err := c.GetRun(ctx, runs[0].ID)
//
// # Admin operations
//
// Deleting runs requires an admin bearer token ('val token' signs one from
// the server's shared secret):
//
//	c, _ := client.New(serverURL, client.WithBearerToken(token))
//	err := c.DeleteRun(ctx, runID)
package client
