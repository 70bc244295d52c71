// Command drawer-sensor measures drawer positions with ultrasonic sensors and
// reed switches and publishes changes to MQTT and the hub.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/drawer-sensor/internal/config"
	"github.com/sweeney/drawer-sensor/internal/gpio"
	"github.com/sweeney/drawer-sensor/internal/hub"
	"github.com/sweeney/drawer-sensor/internal/logic"
	"github.com/sweeney/drawer-sensor/internal/mqtt"
	"github.com/sweeney/drawer-sensor/internal/sensor"
	"github.com/sweeney/drawer-sensor/internal/status"
	"github.com/sweeney/drawer-sensor/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/drawer-sensor.yaml", "YAML configuration file")
	unit := flag.Int("unit", 0, "Unit number selecting the cabinet table (overrides config)")
	poll := flag.Duration("poll", 0, "Measurement cycle interval (overrides config)")
	debounce := flag.Duration("debounce", 0, "Debounce duration (overrides config)")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval (overrides config)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", `HTTP status address (overrides config, "off" disables)`)
	hubPort := flag.String("hub-port", "", `Hub serial port (overrides config, "off" disables)`)
	printState := flag.Bool("print-state", false, "Run one measurement cycle, print it and exit")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")

	flag.Parse()

	if *listPorts {
		ports, err := hub.Ports()
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(cfg, set, flagValues{
		unit:      *unit,
		poll:      *poll,
		debounce:  *debounce,
		heartbeat: *heartbeat,
		broker:    *broker,
		httpAddr:  *httpAddr,
		hubPort:   *hubPort,
	})

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

type flagValues struct {
	unit                      int
	poll, debounce, heartbeat time.Duration
	broker, httpAddr, hubPort string
}

// applyFlags overrides config values with the flags given on the command line.
func applyFlags(cfg *config.Config, set map[string]bool, v flagValues) {
	if set["unit"] {
		cfg.Unit = v.unit
	}
	if set["poll"] {
		cfg.Poll = v.poll
	}
	if set["debounce"] {
		cfg.Detector.Debounce = v.debounce
	}
	if set["heartbeat"] {
		cfg.Detector.Heartbeat = v.heartbeat
	}
	if set["broker"] {
		cfg.MQTT.Broker = v.broker
	}
	if set["http"] {
		cfg.HTTP.Addr = offToEmpty(v.httpAddr)
	}
	if set["hub-port"] {
		cfg.Hub.Port = offToEmpty(v.hubPort)
	}
}

func offToEmpty(s string) string {
	if s == "off" {
		return ""
	}
	return s
}

func run(cfg *config.Config, printState bool) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cabinets, err := cfg.CabinetTable()
	if err != nil {
		return fmt.Errorf("cabinet table: %w", err)
	}
	warnings, _ := config.ValidateCabinets(cabinets)
	for _, w := range warnings {
		log.Printf("config warning: %s", w)
	}

	// Initialize GPIO
	bus, err := gpio.NewRealBus(cfg.Chip, sensor.Lines(cabinets))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer bus.Close()

	cal := cfg.CalibrationThresholds()
	ranger := sensor.NewRanger(bus, cal, sensor.Config{
		TriggerWidth: cfg.Sensing.TriggerWidth,
		EchoMargin:   cfg.Sensing.EchoMargin,
	})
	mux := sensor.NewMultiplexer(ranger, cal, cfg.Sensing.Settle)

	// Print state mode
	if printState {
		mux.SetSink(sensor.SinkFunc(func(r logic.Report) {
			log.Printf("drawer %s: %s", r.Key(), r.Position)
		}))
		fmt.Println(hub.Header(cfg.Unit, cabinets))
		fmt.Println(hub.Line(mux.RunCycle(cabinets)))
		return nil
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.ClientID(),
		Unit:       cfg.Unit,
		BufferSize: cfg.MQTT.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize hub link; the port is retried every cycle until it opens
	var link *hub.Link
	if cfg.Hub.Port != "" {
		link = hub.Dial(cfg.Hub.Port, cfg.Hub.Baud)
		defer link.Close()
		if err := link.SendHeader(cfg.Unit, cabinets); err != nil {
			log.Printf("hub not available yet: %v", err)
		}
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, cabinets))
	tracker.SetWarnings(warnings)
	tracker.SetMQTTConnected(publisher.IsConnected(), publisher.Buffered())
	if link != nil {
		tracker.SetHubConnected(link.IsConnected())
	}
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: unit=%d cabinets=%s poll=%v debounce=%v broker=%s heartbeat=%v",
		cfg.Unit, hub.Header(cfg.Unit, cabinets), cfg.Poll, cfg.Detector.Debounce, cfg.MQTT.Broker, cfg.Detector.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lc := loopConfig{
		cabinets:   cabinets,
		cycler:     mux,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		detector:   cfg.DetectorSettings(),
		heartbeat:  cfg.Detector.Heartbeat,
		now:        time.Now,
	}
	if link != nil {
		lc.hub = link
	}
	return runLoop(lc, ticker.C, sigCh)
}

func statusConfig(cfg *config.Config, cabinets []logic.Cabinet) status.Config {
	return status.Config{
		Unit:        cfg.Unit,
		Cabinets:    hub.Layout(cabinets),
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.Detector.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Detector.Heartbeat.Milliseconds(),
		Deadband:    cfg.Detector.Deadband,
		ShortEcho:   cfg.Calibration.ShortEcho,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		HubPort:     cfg.Hub.Port,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
