package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"SegTrackServer/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

var (
	PID process.Process

	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})

	GRPCTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grpc_requests_total",
		Help: "Total number of gRPC requests processed",
	})
	HTTPTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP and websocket requests processed",
	})
	FramesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frames_processed_total",
		Help: "Frames that ran through the pipeline",
	})
	FramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frames_dropped_total",
		Help: "Frames dropped because their session was still busy",
	})
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matches_total",
		Help: "Detection to landmark matches produced",
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Number of open tracking sessions",
	})
	PipelineSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_duration_seconds",
		Help:    "Time spent in one pipeline cycle",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)

var srv *http.Server

// Registry returns a registry with every collector of this package.
func Registry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(memUsage, cpuUsage, GRPCTotal, HTTPTotal,
		FramesProcessed, FramesDropped, MatchesTotal, ActiveSessions, PipelineSeconds)
	return registry
}

func prom(port int) {
	registry := Registry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("metrics server stopped", zap.Error(err))
		}
	}()
}

// ObserveCycle records one finished pipeline cycle.
func ObserveCycle(elapsed time.Duration, matches int) {
	FramesProcessed.Inc()
	MatchesTotal.Add(float64(matches))
	PipelineSeconds.Observe(elapsed.Seconds())
}

func CheckProcessInfo() {
	memInfo, err := PID.MemoryInfo()
	if err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	cpuPercent, err := PID.CPUPercent()
	if err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

func GotPID() {
	PID.Pid = int32(os.Getpid())
}

// StartMon serves /metrics on port and samples process usage until ctx ends.
func StartMon(port int, ctx context.Context) {
	PID = process.Process{}
	GotPID()
	prom(port)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			CheckProcessInfo()
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("metrics server shutdown", zap.Error(err))
	}
}
