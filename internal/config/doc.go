// Package config provides configuration management for the triage worker.
//
// Configuration is loaded from environment variables and validated on startup.
// All configuration options have sensible defaults for development; the
// defaults select the keyword classifier, the console sender and a Redis
// session store.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
package config
