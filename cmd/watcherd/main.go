// Command watcherd is a demo runtime: it wires a Manager to a
// gorilla/websocket control channel and drives it with a simulated audio
// callback in place of the real embedded host named out of scope in spec §1.
package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/BelaPlatform/watcher-go/internal/logger"
	"github.com/BelaPlatform/watcher-go/internal/watcher"
	"github.com/BelaPlatform/watcher-go/internal/watcher/manager"
	"github.com/BelaPlatform/watcher-go/internal/watcher/transport"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	if err := os.MkdirAll(cfg.logDir, 0o755); err != nil {
		log.Error("failed to create log directory", "dir", cfg.logDir, "err", err)
		os.Exit(1)
	}

	tr := transport.New(log.With("component", "transport"))
	mgr := manager.New(tr, manager.Config{
		SampleRate: float32(cfg.sampleRate),
		LogDir:     cfg.logDir,
		ID:         uint64(os.Getpid()),
		Logger:     log,
	})

	osc, err := manager.Register[float32](mgr, "osc1", watcher.TypeFloat32, watcher.TimestampBlock)
	if err != nil {
		log.Error("failed to register osc1", "err", err)
		os.Exit(1)
	}
	trig, err := manager.Register[int32](mgr, "trig", watcher.TypeInt32, watcher.TimestampSample)
	if err != nil {
		log.Error("failed to register trig", "err", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", tr.ServeHTTP)
	httpServer := &http.Server{Addr: cfg.listenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mgr.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("control channel listening", "addr", cfg.listenAddr, "path", "/ws", "version", version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("control channel server error", "err", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runAudioCallback(ctx, mgr, osc, trig, time.Duration(cfg.tickPeriodMS)*time.Millisecond)
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("control channel shutdown error", "err", err)
	}
	wg.Wait()
	log.Info("watcherd stopped cleanly")
}

// runAudioCallback stands in for the real embedded host (spec §1's
// "explicitly out of scope" audio host): it advances the manager clock every
// tick, writes osc on every tick and trig on every fourth tick, the way real
// DSP code would.
func runAudioCallback(ctx context.Context, mgr *manager.Manager, osc watcher.Var[float32], trig watcher.Var[int32], period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var clock uint64
	var trigCount int32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mgr.Tick(clock)
			osc.Set(float32(math.Sin(float64(clock) * 0.01)))
			if clock%4 == 0 {
				trigCount++
				trig.Set(trigCount)
			}
			clock++
		}
	}
}
