// Command caasd runs the CaaS audit substrate: CEI intercepts compliance
// events, AAP drives them through the ledger at the resolved fidelity
// level, and the HTTP surface exposes PAC/CAL/ZCVI plus analytics and a
// live-tail websocket.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/caas/audit-substrate/internal/compliance"
	"github.com/caas/audit-substrate/internal/config"
	"github.com/caas/audit-substrate/internal/server"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	fidelityConfig, err := config.LoadFidelityConfig(cfg.FidelityConfig)
	if err != nil {
		log.Error("fidelity config load failed", "error", err)
		os.Exit(1)
	}

	ledger := compliance.NewLedger(cfg.BatchSize)
	compiler := compliance.NewCompiler()
	interceptor := compliance.NewInterceptor(cfg.QueueCapacity, log)
	pipeline := compliance.NewPipeline(ledger, fidelityConfig)
	verifier := compliance.NewVerifier(ledger, compiler)
	broadcaster := server.NewBroadcaster(log)
	metrics := server.NewMetrics(prometheus.DefaultRegisterer)

	pipeline.RegisterHandler(func(p compliance.ProcessedAuditEvent) {
		broadcaster.Publish(p)
	})

	watcher, err := server.NewPolicyWatcher(cfg.PolicyDir, compiler, log)
	if err != nil {
		log.Error("policy watcher init failed", "error", err)
		os.Exit(1)
	}
	if err := watcher.LoadAll(); err != nil {
		log.Error("initial policy load failed", "error", err)
		os.Exit(1)
	}
	stop := make(chan struct{})
	go func() {
		if err := watcher.Watch(stop); err != nil {
			log.Error("policy watcher stopped", "error", err)
		}
	}()

	handler := &server.Handler{
		Interceptor: interceptor,
		Compiler:    compiler,
		Ledger:      ledger,
		Pipeline:    pipeline,
		Verifier:    verifier,
		Broadcaster: broadcaster,
		Metrics:     metrics,
		KAnonymity:  cfg.KAnonymity,
		DPEpsilon:   cfg.DPEpsilon,
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.New(handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	log.Info("caasd listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server stopped", "error", err)
		close(stop)
		os.Exit(1)
	}
}
