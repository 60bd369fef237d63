// tefmem is an interactive console for managing memory channels on TEF
// ESP32 radios: connect, read, edit, erase and move channel lists in and
// out of CSV files.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/abiosoft/ishell"

	"github.com/tefradio/tefmem/pkg/config"
	"github.com/tefradio/tefmem/pkg/logging"
	"github.com/tefradio/tefmem/pkg/radio"
	"github.com/tefradio/tefmem/pkg/trace"
)

var (
	configPath = flag.String("config", "config.yaml", "Configuration file path")
	device     = flag.String("device", "", "Serial device (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
	wireTrace  = flag.Bool("trace", false, "Log raw serial traffic")
	version    = flag.Bool("version", false, "Show version information")
)

const Version = "0.1.0-dev"

const unconnectedPrompt = "[none] > "

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("tefmem version %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Console sessions keep the log out of the terminal
	cfg.Logging.Console = false
	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	trace.SetEnabled(*wireTrace)

	if *device != "" {
		cfg.Serial.Port = *device
	}
	if *baud > 0 {
		cfg.Serial.BaudRate = *baud
	}

	sh := ishell.New()
	sh.Println("tefmem", Version, "- TEF ESP32 memory channel console")
	sh.Println("Type 'help' for commands.")
	sh.SetPrompt(unconnectedPrompt)

	session := radio.NewSession(radio.Options{
		Device:         cfg.Serial.Port,
		Baud:           cfg.Serial.BaudRate,
		ConnectTimeout: cfg.ConnectTimeout(),
		Status: func(message string) {
			sh.Println(message)
		},
	})

	con := &console{shell: sh, session: session, config: cfg}
	con.register()

	sh.Run()
	session.Disconnect()
}
