package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/drawer-sensor/internal/logic"
	"github.com/sweeney/drawer-sensor/internal/mqtt"
	"github.com/sweeney/drawer-sensor/internal/status"
)

// cycler runs one measurement cycle over the cabinet table.
type cycler interface {
	RunCycle(cabinets []logic.Cabinet) []logic.Report
}

// hubSink forwards cycle lines to the downstream hub.
type hubSink interface {
	SendCycle(reports []logic.Report) error
	IsConnected() bool
}

// buffered is implemented by publishers that queue messages while offline.
type buffered interface {
	Buffered() int
}

type loopConfig struct {
	cabinets   []logic.Cabinet
	cycler     cycler
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // optional
	hub        hubSink               // optional
	tracker    *status.Tracker       // optional
	detector   logic.DetectorConfig
	heartbeat  time.Duration
	now        func() time.Time
}

func runLoop(lc loopConfig, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := lc.now()
	detector := logic.NewDetector(lc.detector, startTime)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: lc.now(),
				Event:     mqtt.EventShutdown,
				Reason:    signalName,
				Retained:  true,
			}
			if lc.tracker != nil {
				lc.refreshConnectivity()
				snap := lc.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, mqtt.EventShutdown, signalName)
			}
			if err := lc.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := lc.now()
			reports := lc.cycler.RunCycle(lc.cabinets)
			took := lc.now().Sub(t)

			if lc.hub != nil {
				if err := lc.hub.SendCycle(reports); err != nil {
					log.Printf("hub send error: %v", err)
				}
			}

			events := detector.Process(logic.Input{
				Reports: reports,
				Time:    t,
			})

			for _, event := range events {
				log.Printf("event: %s %s (%s -> %s)", event.Type, event.Key, event.From, event.To)
				if err := lc.publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			// Update status tracker for HTTP consumers
			if lc.tracker != nil {
				lc.tracker.RecordCycle(reports, t, took)
				lc.tracker.Update(detector.CurrentState(), detector.IsBaselined(), detector.EventCountsSnapshot())
				lc.refreshConnectivity()
			}

			if !detector.IsBaselined() {
				// Still waiting for baseline
				continue
			}

			if hbData := detector.CheckHeartbeat(t, lc.heartbeat); hbData != nil {
				lc.sendHeartbeat(hbData)
			}
		}
	}
}

func (lc loopConfig) sendHeartbeat(hb *logic.HeartbeatData) {
	log.Printf("heartbeat: uptime=%v opened=%d closed=%d moved=%d lost=%d",
		hb.Uptime, hb.Counts.Opened, hb.Counts.Closed, hb.Counts.Moved, hb.Counts.Lost)

	event := mqtt.SystemEvent{
		Timestamp: hb.Timestamp,
		Event:     mqtt.EventHeartbeat,
		Retained:  true,
	}
	if lc.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			lc.tracker.SetNetwork(net)
		}
		snap := lc.tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, mqtt.EventHeartbeat, "")
	}
	if err := lc.publisher.PublishSystem(event); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (lc loopConfig) refreshConnectivity() {
	if lc.mqttStatus != nil {
		n := 0
		if b, ok := lc.mqttStatus.(buffered); ok {
			n = b.Buffered()
		}
		lc.tracker.SetMQTTConnected(lc.mqttStatus.IsConnected(), n)
	}
	if lc.hub != nil {
		lc.tracker.SetHubConnected(lc.hub.IsConnected())
	}
}
