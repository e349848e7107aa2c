package runtime

import (
	"context"
	"os/signal"
	"syscall"
)

// SignalContext returns a root context cancelled on SIGINT or SIGTERM. A
// second signal kills the process immediately via the default handler.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
