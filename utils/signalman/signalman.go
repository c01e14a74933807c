package signalman

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"sort"
	"sync"
	"syscall"

	"github.com/alpacahq/gofolio/utils/log"
)

type SignalHandler func() error

var (
	handlers = map[string]SignalHandler{}
	mu       sync.Mutex
)

// RegisterFunc adds a handler to run at shutdown. Registering
// the same name twice replaces the earlier handler.
func RegisterFunc(name string, f SignalHandler) {
	mu.Lock()
	defer mu.Unlock()

	log.Debug("register graceful termination", "name", name)
	handlers[name] = f
}

// Close runs every registered handler once, in name order,
// and returns the first failure.
func Close() (err error) {
	mu.Lock()
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	run := handlers
	handlers = map[string]SignalHandler{}
	mu.Unlock()

	sort.Strings(names)

	for _, name := range names {
		if herr := run[name](); herr != nil {
			log.Error("failed to graceful terminate", "error", herr, "handler", name)
			if err == nil {
				err = fmt.Errorf("%s: %v", name, herr)
			}
		} else {
			log.Debug("gracefully terminated", "handler", name)
		}
	}

	return err
}

// Start returns a context that is cancelled on SIGINT or
// SIGTERM. SIGUSR1 dumps goroutine stacks to stderr.
func Start(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGUSR1, syscall.SIGTERM, os.Interrupt)

	go func() {
		defer signal.Stop(sigChannel)

		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChannel:
				if sig == syscall.SIGUSR1 {
					fmt.Fprintln(os.Stderr, "dumping stack traces due to SIGUSR1 request")
					pprof.Lookup("goroutine").WriteTo(os.Stderr, 1)
					continue
				}
				log.Info("terminating", "signal", sig.String())
				cancel()
				return
			}
		}
	}()

	return ctx, cancel
}
