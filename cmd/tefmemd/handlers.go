package main

import (
	"bytes"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tefradio/tefmem/pkg/csvio"
	"github.com/tefradio/tefmem/pkg/protocol"
	"github.com/tefradio/tefmem/pkg/transport"
)

// handleGetStatus returns daemon and connection state
func (d *Daemon) handleGetStatus(c *gin.Context) {
	cfg := d.session.Configuration()

	status := gin.H{
		"version":    Version,
		"connected":  d.session.IsConnected(),
		"device":     d.session.Device(),
		"has_config": cfg != nil,
	}
	if cfg != nil {
		status["model_id"] = cfg.ModelID
		status["firmware"] = cfg.Version
		status["memory_positions"] = cfg.MemoryPositions
		status["channels"] = len(cfg.Channels)
	}

	c.JSON(http.StatusOK, status)
}

// handleGetPorts lists candidate serial devices on this host
func (d *Daemon) handleGetPorts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ports": transport.ListPorts(),
	})
}

// handleConnect opens the serial port. Device and baud default to the
// daemon configuration when the request omits them.
func (d *Daemon) handleConnect(c *gin.Context) {
	var req struct {
		Device string `json:"device"`
		Baud   int    `json:"baud"`
	}
	// An empty body means "use the configured port"
	_ = c.ShouldBindJSON(&req)

	if req.Device == "" {
		req.Device = d.config.Serial.Port
	}
	if req.Baud == 0 {
		req.Baud = d.config.Serial.BaudRate
	}

	if err := d.session.ConnectTo(req.Device, req.Baud); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to connect: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "connected",
		"device": req.Device,
		"baud":   req.Baud,
	})
}

// handleDisconnect closes the serial port
func (d *Daemon) handleDisconnect(c *gin.Context) {
	if err := d.session.Disconnect(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to disconnect: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

// handleReadConfiguration runs a full configuration read against the
// radio and returns the result plus any warnings
func (d *Daemon) handleReadConfiguration(c *gin.Context) {
	cfg, warnings, err := d.session.ReadConfiguration()
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Configuration read failed: " + err.Error(),
		})
		return
	}

	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"configuration": cfg,
		"warnings":      warnings,
	})
}

// handleGetConfiguration returns the cached configuration without
// touching the radio
func (d *Daemon) handleGetConfiguration(c *gin.Context) {
	cfg := d.session.Configuration()
	if cfg == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No configuration loaded; read the radio first",
		})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// handleGetChannels returns the channel list decorated with derived
// display state
func (d *Daemon) handleGetChannels(c *gin.Context) {
	cfg := d.session.Configuration()
	if cfg == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No configuration loaded; read the radio first",
		})
		return
	}

	channels := []gin.H{}
	for _, ch := range cfg.SortedChannels() {
		band := cfg.BandOf(ch.FreqKHz)
		channels = append(channels, gin.H{
			"channel":          ch.Number,
			"freq_khz":         ch.FreqKHz,
			"bandwidth_code":   ch.BandwidthCode,
			"bandwidth":        protocol.BandwidthLabel(band, ch.BandwidthCode),
			"mono_stereo_code": ch.MonoStereoCode,
			"pi":               ch.PI,
			"ps":               ch.PS,
			"band":             band,
			"skipped":          cfg.IsSkipped(&ch),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"count":    len(channels),
	})
}

// handleWriteChannel stores one channel on the radio. A device rejection
// is a normal outcome and still answers 200; the success flag and
// messages carry the verdict.
func (d *Daemon) handleWriteChannel(c *gin.Context) {
	var ch protocol.Channel
	if err := c.ShouldBindJSON(&ch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	success, messages := d.session.WriteChannel(ch)
	c.JSON(http.StatusOK, gin.H{
		"success":  success,
		"messages": messages,
	})
}

// handleSkipChannel marks one channel skipped
func (d *Daemon) handleSkipChannel(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel number"})
		return
	}

	success, messages := d.session.SkipChannel(number)
	c.JSON(http.StatusOK, gin.H{
		"success":  success,
		"messages": messages,
	})
}

// handleGetSkipped reports the skip state of one channel
func (d *Daemon) handleGetSkipped(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel number"})
		return
	}

	if d.session.Configuration() == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No configuration loaded; read the radio first",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel": number,
		"skipped": d.session.IsChannelSkipped(number),
	})
}

// handleSkipAll erases the radio by skipping channels 2 and up
func (d *Daemon) handleSkipAll(c *gin.Context) {
	result, err := d.session.SkipAll()
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"result": result,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result": result,
		// The cached configuration predates these writes
		"refresh_recommended": result.Attempted,
	})
}

// handleExportCSV streams the cached configuration as a CSV download
func (d *Daemon) handleExportCSV(c *gin.Context) {
	cfg := d.session.Configuration()
	if cfg == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No configuration loaded; read the radio first",
		})
		return
	}

	var buf bytes.Buffer
	count, err := csvio.Export(&buf, cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Export failed: " + err.Error(),
		})
		return
	}

	log.Printf("CSV export: %d channels", count)
	c.Header("Content-Disposition", `attachment; filename="tef_esp32_channels.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// handleImportPlan parses an uploaded CSV against the live configuration
// and stages the differential write list for a later execute call
func (d *Daemon) handleImportPlan(c *gin.Context) {
	if d.session.Configuration() == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "No configuration loaded; read the radio before importing",
		})
		return
	}

	result, err := csvio.Import(c.Request.Body, d.session.Configuration())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Import failed: " + err.Error(),
		})
		return
	}

	d.setPendingPlan(result.Plan)

	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	if result.Plan == nil {
		result.Plan = []protocol.Channel{}
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":     result.Plan,
		"count":    len(result.Plan),
		"warnings": result.Warnings,
	})
}

// handleImportExecute writes the staged plan to the radio. The plan is
// consumed whether or not every write succeeds; a retry needs a fresh
// parse against a fresh configuration read.
func (d *Daemon) handleImportExecute(c *gin.Context) {
	plan := d.takePendingPlan()
	if len(plan) == 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error": "No pending import plan; parse a CSV first",
		})
		return
	}

	result, err := d.session.ExecuteWriteList(plan)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"result": result,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":              result,
		"refresh_recommended": result.Attempted,
	})
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// handleEventSocket upgrades the connection and streams session events
// until the client goes away
func (d *Daemon) handleEventSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	log.Printf("Event client connected: %s", conn.RemoteAddr())
	d.hub.Add(conn)
	defer d.hub.Remove(conn)

	// Drain client messages; the stream is one-way but the read loop
	// detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
