package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/alpacahq/gofolio/utils/env"
	"github.com/alpacahq/gofolio/utils/log"
)

const namespace = "gofolio."

var (
	mu     sync.RWMutex
	client *statsd.Client
)

// Init connects to the DogStatsD agent at DOGSTATSD_HOST_IP.
// Without that variable every metric call is a no-op.
func Init() error {
	host := env.GetVar("DOGSTATSD_HOST_IP")
	if host == "" {
		return nil
	}

	port := env.GetVar("DOGSTATSD_PORT")
	if port == "" {
		port = "8125"
	}

	return Connect(fmt.Sprintf("%s:%s", host, port))
}

// Connect points the package at the agent listening on addr.
func Connect(addr string) error {
	c, err := statsd.New(addr, statsd.WithNamespace(namespace))
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if client != nil {
		client.Close()
	}
	client = c

	return nil
}

// Close flushes buffered metrics and disconnects.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if client != nil {
		client.Flush()
		client.Close()
		client = nil
	}
}

// Settlement counts one settlement attempt by kind and
// outcome (ok, or the error kind that rejected it).
func Settlement(kind, outcome string) {
	incr("settlements", "kind:"+kind, "outcome:"+outcome)
}

func ValuationFailed() {
	incr("valuation.failures")
}

// ValuationTiming records how long a snapshot took, from
// start until now.
func ValuationTiming(start time.Time) {
	mu.RLock()
	defer mu.RUnlock()

	if client == nil {
		return
	}

	if err := client.Timing("valuation.latency", time.Since(start), nil, 1); err != nil {
		log.Debug("failed to send metric", "metric", "valuation.latency", "error", err)
	}
}

func incr(name string, tags ...string) {
	mu.RLock()
	defer mu.RUnlock()

	if client == nil {
		return
	}

	if err := client.Incr(name, tags, 1); err != nil {
		log.Debug("failed to send metric", "metric", name, "error", err)
	}
}
