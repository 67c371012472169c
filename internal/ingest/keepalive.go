package ingest

import (
	"context"

	"golang.org/x/time/rate"
)

// runKeepalive writes PING on a fixed interval until ctx ends or a send
// fails. It only touches the connection's send side.
func (l *Loop) runKeepalive(ctx context.Context, conn Conn) {
	limiter := rate.NewLimiter(rate.Every(l.keepalive), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if err := conn.Send(ctx, PingMessage); err != nil {
			if ctx.Err() == nil {
				l.logger.Printf("keep-alive stopped: %v", err)
			}
			return
		}
		l.metrics.IncKeepalives()
	}
}
