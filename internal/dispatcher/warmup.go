package dispatcher

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// warmup probes every enabled endpoint once, concurrently and bounded by an
// errgroup, so HealthSnapshot reflects real data before the first caller
// request rather than only the grace-period default. A probe failure is
// recorded in the Health Registry like any other outcome; it does not fail
// Warmup itself, since an unreachable endpoint is exactly what Warmup exists
// to surface.
func warmup(ctx context.Context, d *Dispatcher) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range d.cfg.Endpoints {
		if !e.Enabled {
			continue
		}
		ep := i
		url := e.URL
		g.Go(func() error {
			if err := d.limiters[ep].Acquire(gctx); err != nil {
				return nil
			}
			if _, err := d.attempt(gctx, ep, url, "warmup", json.RawMessage("[]")); err != nil {
				if err != errCircuitOpen {
					_ = d.registry.RecordFailure(ep, err.Error())
				}
				d.logger.Debug("warmup probe failed", zap.String("endpoint", url), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}
