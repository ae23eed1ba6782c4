package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xyz-jphil/ccapis-proxy/internal/api"
	"github.com/xyz-jphil/ccapis-proxy/internal/config"
	"github.com/xyz-jphil/ccapis-proxy/internal/credential"
	"github.com/xyz-jphil/ccapis-proxy/internal/dispatcher"
	"github.com/xyz-jphil/ccapis-proxy/internal/health"
	"github.com/xyz-jphil/ccapis-proxy/internal/selector"
	"github.com/xyz-jphil/ccapis-proxy/internal/txlog"
	"github.com/xyz-jphil/ccapis-proxy/internal/upstream"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	pool, err := credential.Load(cfg.SettingsPath)
	if err != nil {
		log.Fatal("Failed to load credentials:", err)
	}
	source := credential.NewSource(pool)

	watcher := credential.NewWatcher(cfg.SettingsPath, source)
	watcher.Start()

	monitor := health.NewMonitor(cfg.CircuitBreaker)
	client := upstream.New()
	sel := selector.New(monitor, client)

	txLogger, err := txlog.New(cfg.TxLogDir, cfg.TxLogEnabled)
	if err != nil {
		log.Fatal("Failed to initialize transaction log:", err)
	}

	d := dispatcher.New(source, sel, client, monitor, txLogger)
	app := api.NewServer(d)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")

		watcher.Stop()
		if err := txLogger.Close(); err != nil {
			log.Printf("Error closing transaction log: %v", err)
		}
		if err := app.Shutdown(); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := api.StartServer(app, cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
