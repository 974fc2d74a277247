// Package worker implements the triage worker lifecycle and Redis Streams integration.
//
// The worker consumes inbound emails from a Redis stream, runs each through the
// triage workflow, and publishes the outcome to a result stream. Failures are
// published to the result stream name suffixed with ".errors".
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//	wf, _ := triage.NewWorkflow(deps)
//
//	worker := worker.NewWorker(cfg, redisClient, wf, logger)
//	if err := worker.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer worker.Stop()
//
// An inbox Poller can feed the stream from a mailbox:
//
//	poller := worker.NewPoller(gmailSource, worker, time.Minute, logger)
//	poller.Start()
//	defer poller.Stop()
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8082, map[string]worker.CheckFunc{
//	    "session_store": store.Ping,
//	}, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
