// Package shutdown coordinates graceful termination of gatekeeper-server.
//
// WithSignals turns SIGINT/SIGTERM into context cancellation; Handler runs
// registered cleanup hooks in reverse order under a deadline.
//
// Usage:
//
//	ctx, stop := shutdown.WithSignals(context.Background())
//	defer stop()
//	h := shutdown.NewHandler(15 * time.Second)
//	h.OnShutdown(srv.Shutdown)
//	<-ctx.Done()
//	err := h.Shutdown(context.Background())
package shutdown
