// Package config provides configuration management for the marker relay
// and its companion tools.
//
// Configuration is loaded from environment variables using the env package.
// Defaults reproduce the workshop setup: the relay listens on :5000 and
// publishes on the "markers" stream with source id "ws-flask-markers".
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
