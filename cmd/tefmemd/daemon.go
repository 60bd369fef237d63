package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tefradio/tefmem/pkg/config"
	"github.com/tefradio/tefmem/pkg/protocol"
	"github.com/tefradio/tefmem/pkg/radio"
)

// Daemon owns the radio session and exposes it over HTTP plus a
// WebSocket event stream. Status and progress callbacks from the session
// fan out to every connected event client.
type Daemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	session   *radio.Session
	hub       *eventHub
	webServer *http.Server

	// planMu guards the pending import plan between parse and execute
	planMu      sync.Mutex
	pendingPlan []protocol.Channel
}

// NewDaemon creates a new daemon instance
func NewDaemon(cfg *config.Config) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		hub:    newEventHub(),
	}

	d.session = radio.NewSession(radio.Options{
		Device:         cfg.Serial.Port,
		Baud:           cfg.Serial.BaudRate,
		ConnectTimeout: cfg.ConnectTimeout(),
		Status: func(message string) {
			d.hub.Broadcast(event{Type: "status", Message: message})
		},
		Progress: func(done, total int) {
			d.hub.Broadcast(event{Type: "progress", Done: done, Total: total})
		},
	})

	if err := d.setupWebServer(); err != nil {
		return nil, fmt.Errorf("failed to setup web server: %w", err)
	}

	return d, nil
}

// Start starts the web server; the serial port stays closed until a
// client asks to connect
func (d *Daemon) Start() error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		addr := fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port)
		log.Printf("Starting web server on %s", addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Web server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the daemon gracefully
func (d *Daemon) Stop() error {
	log.Printf("Stopping daemon...")

	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			log.Printf("Web server shutdown error: %v", err)
		}
	}

	d.hub.CloseAll()

	if err := d.session.Disconnect(); err != nil {
		log.Printf("Serial shutdown error: %v", err)
	}

	d.wg.Wait()

	log.Printf("Daemon stopped")
	return nil
}

// setupWebServer initializes the web server and routes
func (d *Daemon) setupWebServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// API routes
	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/ports", d.handleGetPorts)
		api.POST("/connect", d.handleConnect)
		api.POST("/disconnect", d.handleDisconnect)

		api.POST("/configuration/read", d.handleReadConfiguration)
		api.GET("/configuration", d.handleGetConfiguration)

		api.GET("/channels", d.handleGetChannels)
		api.POST("/channels", d.handleWriteChannel)
		api.POST("/channels/:number/skip", d.handleSkipChannel)
		api.GET("/channels/:number/skipped", d.handleGetSkipped)
		api.POST("/channels/skip-all", d.handleSkipAll)

		api.GET("/export", d.handleExportCSV)
		api.POST("/import/plan", d.handleImportPlan)
		api.POST("/import/execute", d.handleImportExecute)
	}

	// WebSocket event stream
	router.GET("/ws/events", d.handleEventSocket)

	addr := fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port)
	d.webServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}

	return nil
}

// setPendingPlan replaces the plan awaiting execution
func (d *Daemon) setPendingPlan(plan []protocol.Channel) {
	d.planMu.Lock()
	d.pendingPlan = plan
	d.planMu.Unlock()
}

// takePendingPlan returns and clears the plan awaiting execution
func (d *Daemon) takePendingPlan() []protocol.Channel {
	d.planMu.Lock()
	defer d.planMu.Unlock()
	plan := d.pendingPlan
	d.pendingPlan = nil
	return plan
}
