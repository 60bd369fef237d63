package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/tefradio/tefmem/pkg/config"
	"github.com/tefradio/tefmem/pkg/csvio"
	"github.com/tefradio/tefmem/pkg/protocol"
	"github.com/tefradio/tefmem/pkg/radio"
	"github.com/tefradio/tefmem/pkg/transport"
)

type console struct {
	shell   *ishell.Shell
	session *radio.Session
	config  *config.Config
}

func (con *console) register() {
	for _, cmd := range con.commands() {
		con.shell.AddCmd(cmd)
	}
}

func (con *console) updatePrompt() {
	if dev := con.session.Device(); dev != "" && con.session.IsConnected() {
		con.shell.SetPrompt("[" + dev + "] > ")
		return
	}
	con.shell.SetPrompt(unconnectedPrompt)
}

// mustBeConnected wraps a command func that needs an open port
func (con *console) mustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if !con.session.IsConnected() {
			c.Err(fmt.Errorf("not connected; use 'connect' first"))
			return
		}
		fn(c)
	}
}

// mustHaveConfig additionally needs a completed configuration read
func (con *console) mustHaveConfig(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return con.mustBeConnected(func(c *ishell.Context) {
		if con.session.Configuration() == nil {
			c.Err(fmt.Errorf("no configuration loaded; use 'read' first"))
			return
		}
		fn(c)
	})
}

func (con *console) commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name: "ports",
			Help: "list candidate serial devices",
			Func: con.cmdPorts,
		},
		{
			Name: "connect",
			Help: "[DEVICE] [BAUD] - open the serial port",
			Func: con.cmdConnect,
		},
		{
			Name: "disconnect",
			Help: "close the serial port",
			Func: con.cmdDisconnect,
		},
		{
			Name:    "read",
			Aliases: []string{"r"},
			Help:    "read the full configuration from the radio",
			Func:    con.mustBeConnected(con.cmdRead),
		},
		{
			Name:    "channels",
			Aliases: []string{"ls"},
			Help:    "show the channel list",
			Func:    con.mustHaveConfig(con.cmdChannels),
		},
		{
			Name:    "write",
			Aliases: []string{"w"},
			Help:    "CH FREQ_KHZ [BW] [MS] [PI] [PS] - store one channel",
			Func:    con.mustBeConnected(con.cmdWrite),
		},
		{
			Name: "skip",
			Help: "CH - mark one channel skipped (unused)",
			Func: con.mustBeConnected(con.cmdSkip),
		},
		{
			Name: "skipped",
			Help: "CH - show the skip state of one channel",
			Func: con.mustHaveConfig(con.cmdSkipped),
		},
		{
			Name: "skipall",
			Help: "erase the radio by skipping channels 2 and up",
			Func: con.mustHaveConfig(con.cmdSkipAll),
		},
		{
			Name: "export",
			Help: "FILE - export the channel list to CSV",
			Func: con.mustHaveConfig(con.cmdExport),
		},
		{
			Name: "import",
			Help: "FILE - import a CSV and write changed channels",
			Func: con.mustHaveConfig(con.cmdImport),
		},
		{
			Name: "status",
			Help: "show connection and configuration state",
			Func: con.cmdStatus,
		},
	}
}

func (con *console) cmdPorts(c *ishell.Context) {
	ports := transport.ListPorts()
	if len(ports) == 0 {
		c.Println("No serial devices found.")
		return
	}
	for _, port := range ports {
		c.Println(" ", port)
	}
}

func (con *console) cmdConnect(c *ishell.Context) {
	device := con.config.Serial.Port
	baud := con.config.Serial.BaudRate

	if len(c.Args) > 0 {
		device = c.Args[0]
	} else if device == "" {
		ports := transport.ListPorts()
		if len(ports) == 0 {
			c.Err(fmt.Errorf("no serial devices found; pass one explicitly"))
			return
		}
		choice := c.MultiChoice(ports, "Which device?")
		if choice < 0 {
			return
		}
		device = ports[choice]
	}
	if len(c.Args) > 1 {
		val, err := strconv.Atoi(c.Args[1])
		if err != nil {
			c.Err(fmt.Errorf("invalid baud rate: %v", err))
			return
		}
		baud = val
	}

	if err := con.session.ConnectTo(device, baud); err != nil {
		c.Err(err)
		return
	}
	con.updatePrompt()
}

func (con *console) cmdDisconnect(c *ishell.Context) {
	if err := con.session.Disconnect(); err != nil {
		c.Err(err)
	}
	con.updatePrompt()
}

func (con *console) cmdRead(c *ishell.Context) {
	cfg, warnings, err := con.session.ReadConfiguration()
	if err != nil {
		c.Err(err)
		con.updatePrompt()
		return
	}
	for _, w := range warnings {
		c.Println("Warning:", w)
	}
	if cfg.ModelID != "" {
		c.Printf("Model: %s  Firmware: %s\n", cfg.ModelID, cfg.Version)
	}
	c.Printf("Memory positions: %d, skip frequency: %d kHz\n",
		cfg.MemoryPositions, cfg.SkipValue())
}

func (con *console) cmdChannels(c *ishell.Context) {
	cfg := con.session.Configuration()

	c.Printf("%-4s %-10s %-9s %-6s %-5s %-6s %-8s\n",
		"Ch", "Freq kHz", "BW", "Mode", "Band", "PI", "PS")
	for _, ch := range cfg.SortedChannels() {
		if cfg.ChannelSkipped(ch.Number) {
			c.Printf("%-4d %s\n", ch.Number, "-- skip --")
			continue
		}
		mode := "mono"
		if ch.MonoStereoCode == 1 {
			mode = "auto"
		}
		band := cfg.BandOf(ch.FreqKHz)
		c.Printf("%-4d %-10d %-9s %-6s %-5s %-6s %-8s\n",
			ch.Number, ch.FreqKHz,
			protocol.BandwidthLabel(band, ch.BandwidthCode),
			mode, band, ch.PI, ch.PS)
	}
}

func (con *console) cmdWrite(c *ishell.Context) {
	if len(c.Args) < 2 {
		c.Err(fmt.Errorf("usage: write CH FREQ_KHZ [BW] [MS] [PI] [PS]"))
		return
	}

	var ch protocol.Channel
	var err error
	if ch.Number, err = strconv.Atoi(c.Args[0]); err != nil {
		c.Err(fmt.Errorf("invalid channel: %v", err))
		return
	}
	if ch.FreqKHz, err = strconv.Atoi(c.Args[1]); err != nil {
		c.Err(fmt.Errorf("invalid frequency: %v", err))
		return
	}
	if len(c.Args) > 2 {
		if ch.BandwidthCode, err = strconv.Atoi(c.Args[2]); err != nil {
			c.Err(fmt.Errorf("invalid bandwidth code: %v", err))
			return
		}
	}
	ch.MonoStereoCode = 1
	if len(c.Args) > 3 {
		if ch.MonoStereoCode, err = strconv.Atoi(c.Args[3]); err != nil {
			c.Err(fmt.Errorf("invalid mono/stereo code: %v", err))
			return
		}
	}
	if len(c.Args) > 4 {
		ch.PI = c.Args[4]
	}
	if len(c.Args) > 5 {
		ch.PS = strings.Join(c.Args[5:], " ")
	}

	success, messages := con.session.WriteChannel(ch)
	printOutcome(c, success, messages)
	con.updatePrompt()
}

func (con *console) cmdSkip(c *ishell.Context) {
	if len(c.Args) < 1 {
		c.Err(fmt.Errorf("usage: skip CH"))
		return
	}
	number, err := strconv.Atoi(c.Args[0])
	if err != nil {
		c.Err(fmt.Errorf("invalid channel: %v", err))
		return
	}

	success, messages := con.session.SkipChannel(number)
	printOutcome(c, success, messages)
	con.updatePrompt()
}

func (con *console) cmdSkipped(c *ishell.Context) {
	if len(c.Args) < 1 {
		c.Err(fmt.Errorf("usage: skipped CH"))
		return
	}
	number, err := strconv.Atoi(c.Args[0])
	if err != nil {
		c.Err(fmt.Errorf("invalid channel: %v", err))
		return
	}
	if con.session.IsChannelSkipped(number) {
		c.Printf("Channel %d is skipped.\n", number)
	} else {
		c.Printf("Channel %d is active.\n", number)
	}
}

func (con *console) cmdSkipAll(c *ishell.Context) {
	cfg := con.session.Configuration()
	c.Printf("This will skip channels 2-%d, erasing all stored stations.\n",
		cfg.MemoryPositions)
	if c.MultiChoice([]string{"no", "yes"}, "Are you sure?") != 1 {
		c.Println("Aborted.")
		return
	}

	result, err := con.session.SkipAll()
	if err != nil {
		c.Err(err)
	}
	c.Printf("Done: %d skipped, %d already skipped, %d failed.\n",
		result.Succeeded, result.AlreadySkipped, result.Failed)
	if result.Attempted {
		c.Println("Use 'read' to refresh the channel list.")
	}
	con.updatePrompt()
}

func (con *console) cmdExport(c *ishell.Context) {
	if len(c.Args) < 1 {
		c.Err(fmt.Errorf("usage: export FILE"))
		return
	}

	file, err := os.Create(c.Args[0])
	if err != nil {
		c.Err(err)
		return
	}
	defer file.Close()

	count, err := csvio.Export(file, con.session.Configuration())
	if err != nil {
		c.Err(err)
		return
	}
	c.Printf("Exported %d channels to %s\n", count, c.Args[0])
}

func (con *console) cmdImport(c *ishell.Context) {
	if len(c.Args) < 1 {
		c.Err(fmt.Errorf("usage: import FILE"))
		return
	}

	file, err := os.Open(c.Args[0])
	if err != nil {
		c.Err(err)
		return
	}
	result, err := csvio.Import(file, con.session.Configuration())
	file.Close()
	if err != nil {
		c.Err(err)
		return
	}

	for _, w := range result.Warnings {
		c.Println("Warning:", w)
	}
	if len(result.Plan) == 0 {
		c.Println("Radio already matches the CSV; nothing to write.")
		return
	}

	c.Printf("%d channel(s) differ and will be written:\n", len(result.Plan))
	for _, ch := range result.Plan {
		c.Printf("  Ch %-3d -> %d kHz\n", ch.Number, ch.FreqKHz)
	}
	if c.MultiChoice([]string{"no", "yes"}, "Write these to the radio?") != 1 {
		c.Println("Aborted.")
		return
	}

	batch, err := con.session.ExecuteWriteList(result.Plan)
	if err != nil {
		c.Err(err)
	}
	c.Printf("Done: %d succeeded, %d failed.\n", batch.Succeeded, batch.Failed)
	if batch.Attempted {
		c.Println("Use 'read' to refresh the channel list.")
	}
	con.updatePrompt()
}

func (con *console) cmdStatus(c *ishell.Context) {
	if !con.session.IsConnected() {
		c.Println("Not connected.")
		return
	}
	c.Printf("Connected to %s\n", con.session.Device())

	cfg := con.session.Configuration()
	if cfg == nil {
		c.Println("No configuration loaded; use 'read'.")
		return
	}
	if cfg.ModelID != "" {
		c.Printf("Model: %s  Firmware: %s\n", cfg.ModelID, cfg.Version)
	}
	c.Printf("Memory positions: %d, channels read: %d, skip frequency: %d kHz\n",
		cfg.MemoryPositions, len(cfg.Channels), cfg.SkipValue())
}

func printOutcome(c *ishell.Context, success bool, messages []string) {
	if success {
		c.Println("OK:", strings.Join(messages, ", "))
	} else {
		c.Println("FAILED:", strings.Join(messages, ", "))
	}
}
