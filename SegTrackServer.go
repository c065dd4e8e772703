package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	adhoc "SegTrackServer/Adhoc"
	"SegTrackServer/config"
	backend "SegTrackServer/gRPC"
	"SegTrackServer/logger"
	"SegTrackServer/monitor"
	"SegTrackServer/sessions"
	"SegTrackServer/webapi"

	"go.uber.org/zap"
)

func main() {
	path := "config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Println("Failed to load config:", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogMode); err != nil {
		fmt.Println("Failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log()

	fmt.Println(strings.Repeat("#", 64))
	cpuNum := runtime.NumCPU()
	fmt.Printf("CPU Cores: %d\n", cpuNum)
	fmt.Println(" gRPC    Port:", cfg.RPCPort)
	fmt.Println(" HTTP    Port:", cfg.HTTPPort)
	fmt.Println(" Metrics Port:", cfg.MetricsPort)
	fmt.Println("Configured Workers Num:", cfg.WorkersNum)
	fmt.Println(strings.Repeat("#", 64))
	if cfg.WorkersNum <= 0 {
		cfg.WorkersNum = 1
		log.Warn("invalid workersNum in config, defaulting to 1")
	} else if cfg.WorkersNum > cpuNum {
		log.Warn("workersNum exceeds CPU cores, which may lead to performance degradation",
			zap.Int("workers", cfg.WorkersNum), zap.Int("cpus", cpuNum))
	}

	pool := sessions.NewPool(cfg.WorkersNum, log)
	pool.Start()
	manager := sessions.NewManager(cfg.Pipeline, cfg.IdleTimeout(), pool, log)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	go monitor.StartMon(cfg.MetricsPort, ctx)
	go manager.MonitorIdle(ctx, cfg.IdleTimeout()/4)

	wg.Add(1)
	if cfg.UseRegServer {
		ip, err := adhoc.GetOutboundIP()
		if err != nil {
			log.Error("failed to get outbound IP", zap.Error(err))
			ip = "127.0.0.1"
		}
		class, ok := adhoc.InstanceClassOf(cfg.InstanceClass)
		if !ok {
			log.Warn("invalid instanceClass in config, defaulting to Cpu", zap.String("instanceClass", cfg.InstanceClass))
		}
		hb := adhoc.Heartbeat{
			IP:            ip,
			RPCPort:       cfg.RPCPort,
			HTTPPort:      cfg.HTTPPort,
			InstanceClass: class,
			Sessions:      manager.Len,
		}
		hb.Registry.SetAddress(cfg.RegServerHost, cfg.RegServerPort)
		go adhoc.SendAliveMessage(ctx, hb, &wg)
	} else {
		log.Info("UseRegServer is set to false, skipping registration")
		wg.Done()
	}

	rpc := backend.NewServer(manager)
	grpcServer, err := backend.StartGRPCServer(cfg.RPCPort, rpc)
	if err != nil {
		log.Error("failed to start gRPC server", zap.Error(err))
		cancel()
		os.Exit(1)
	}
	httpServer := webapi.Start(cfg.HTTPPort, webapi.NewRouter(&webapi.API{
		Manager:     manager,
		IdleTimeout: cfg.IdleTimeout(),
	}))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-rpc.CloseChannel:
		log.Warn("shutting down on request")
	case s := <-sig:
		log.Warn("shutting down on signal", zap.String("signal", s.String()))
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 3*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	pool.Close()
	manager.CloseAll()
	wg.Wait()
	log.Info("Safely exited")
}
