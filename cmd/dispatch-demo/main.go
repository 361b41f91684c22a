// Command dispatch-demo runs a scripted local JSON-RPC endpoint and drives
// a Client against it, printing health snapshots on an interval until
// interrupted. It exists to exercise the library end-to-end, not as part
// of the dispatch core itself.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chainrpc/dispatch/internal/config"
	"github.com/chainrpc/dispatch/pkg/rpcclient"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	srv := startScriptedEndpoint(logger)
	defer srv.Close()

	cfg := config.DispatcherConfig{
		Endpoints: []config.EndpointConfig{
			{URL: srv.URL, Weight: 1, Enabled: true},
		},
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		RequestTimeout:  2 * time.Second,
		RateLimit:       config.RateLimitConfig{MaxRPS: 10, BurstSize: 10},
		FreshnessWindow: 30 * time.Second,
	}

	client, err := rpcclient.New(cfg, rpcclient.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to construct client", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := client.Warmup(ctx); err != nil {
		logger.Warn("warmup incomplete", zap.Error(err))
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("dispatch-demo exiting")
			return
		case <-ticker.C:
			result, err := client.Call(ctx, "getBlockHeight", json.RawMessage("[]"))
			if err != nil {
				logger.Warn("call failed", zap.Error(err))
			} else {
				logger.Info("call succeeded", zap.ByteString("result", result))
			}
			for _, h := range client.HealthSnapshot() {
				logger.Info("endpoint health",
					zap.String("url", h.URL),
					zap.Int64("successes", h.SuccessCount),
					zap.Int64("failures", h.FailureCount),
					zap.Bool("healthy", h.Healthy))
			}
		}
	}
}

// startScriptedEndpoint runs a local JSON-RPC server that always succeeds,
// giving the demo something to dispatch against without a live chain.
func startScriptedEndpoint(logger *zap.Logger) *httptest.Server {
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  123456,
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	logger.Info("scripted endpoint starting")
	return httptest.NewServer(router)
}
