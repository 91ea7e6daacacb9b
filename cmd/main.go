package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"smart-energy/internal/config"
	"smart-energy/internal/feed"
	"smart-energy/internal/modbus"
	"smart-energy/internal/mqtt"
	"smart-energy/internal/simulation"

	"github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a config file (default: ./config.yaml)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		logger.Warnf("Unknown log level %q, keeping info", cfg.Log.Level)
	} else {
		logger.SetLevel(level)
	}

	logger.Infof("Starting smart energy simulator with config: %+v", cfg.Simulation)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	system := simulation.NewEnergySystem(simulation.NewSource(cfg.Simulation.Seed), logger)
	monitor := simulation.NewMonitor(system, cfg.Simulation.TickInterval(), logger)

	var wg sync.WaitGroup

	var feedServer *feed.Server
	if cfg.Server.Enabled {
		feedServer = feed.NewServer(cfg, system, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := feedServer.Start(ctx); err != nil {
				logger.Errorf("Display feed error: %v", err)
				cancel()
			}
		}()
	}

	var modbusServer *modbus.Server
	if cfg.Modbus.Enabled {
		modbusServer = modbus.NewServer(cfg, system, logger)
		if err := modbusServer.Start(); err != nil {
			logger.Fatalf("Failed to start modbus server: %v", err)
		}
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(cfg, system, logger)
		if err != nil {
			logger.Fatalf("Failed to create MQTT client: %v", err)
		}
		if err := mqttClient.Connect(); err != nil {
			logger.Fatalf("Failed to connect to MQTT: %v", err)
		}
	}

	monitor.Start(ctx)

	logger.Info("All services started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down...")

	// no tick may fire once the adapters start going away
	monitor.Stop()
	cancel()

	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if modbusServer != nil {
		modbusServer.Stop()
	}
	if feedServer != nil {
		feedServer.Stop()
	}

	wg.Wait()
	logger.Infof("Shutdown complete after %d ticks", system.Ticks())
}
