package main

import (
	"log"
	"net/http"

	"github.com/certen/ledger-kernel/internal/metrics"
)

// serveMetrics starts the Prometheus scrape endpoint in the background
// and returns the server so the caller can shut it down gracefully.
func serveMetrics(addr string, reg *metrics.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("[ledgerd] metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[ledgerd] metrics server error: %v", err)
		}
	}()
	return srv
}
