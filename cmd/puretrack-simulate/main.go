// PureTrack telemetry simulator
//
// Publishes synthetic water-quality readings to the telemetry stream so
// the ingestion worker can be exercised without real sensors. Values
// drift around healthy baselines with an occasional spike, which is
// enough to light up thresholds, trends and digests in a dev setup.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/config"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/queue"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/queue/nats"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

func main() {
	devices := flag.String("devices", "sim-tank-1,sim-tank-2", "comma-separated device IDs")
	interval := flag.Duration("interval", 5*time.Second, "delay between readings per device")
	count := flag.Int("count", 0, "readings per device, 0 runs until interrupted")
	spikeEvery := flag.Int("spike-every", 20, "inject an out-of-band spike every Nth reading, 0 disables")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	natsCfg := queue.DefaultConfig().NATS
	natsCfg.URL = cfg.Queue.URL
	natsCfg.StreamName = cfg.Queue.StreamName

	client, err := nats.NewClient(&natsCfg)
	if err != nil {
		slog.Error("Failed to connect to NATS", "url", natsCfg.URL, "error", err)
		os.Exit(1)
	}
	defer client.Close()
	publisher := client.Publisher()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ids := strings.Split(*devices, ",")
	slog.Info("Simulator started",
		"devices", ids,
		"subject", cfg.Queue.Subject,
		"interval", interval.String())

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sent := 0
	for {
		for _, id := range ids {
			env := telemetry.Envelope{
				DeviceID: strings.TrimSpace(id),
				Reading:  synthesize(sent, *spikeEvery),
			}
			data, err := json.Marshal(env)
			if err != nil {
				slog.Error("Failed to encode envelope", "error", err)
				continue
			}

			dedupID := fmt.Sprintf("%s-%d", env.DeviceID, *env.Reading.Timestamp)
			if err := publisher.PublishWithDeduplication(ctx, cfg.Queue.Subject, data, dedupID); err != nil {
				slog.Error("Failed to publish reading", "deviceId", env.DeviceID, "error", err)
				continue
			}
			slog.Debug("Published reading", "deviceId", env.DeviceID)
		}

		sent++
		if *count > 0 && sent >= *count {
			slog.Info("Simulator finished", "readingsPerDevice", sent)
			return
		}

		select {
		case <-ctx.Done():
			slog.Info("Simulator stopped", "readingsPerDevice", sent)
			return
		case <-ticker.C:
		}
	}
}

// synthesize produces a reading near healthy baselines. Every
// spikeEvery-th reading pushes turbidity past its critical band.
func synthesize(n, spikeEvery int) *telemetry.ReadingPayload {
	turbidity := 1.5 + rand.Float64()*2
	tds := 250 + rand.Float64()*100
	ph := 7.0 + (rand.Float64()-0.5)*0.8

	if spikeEvery > 0 && n > 0 && n%spikeEvery == 0 {
		turbidity = 12 + rand.Float64()*5
	}

	ts := time.Now().UnixMilli()
	return &telemetry.ReadingPayload{
		Turbidity: &turbidity,
		TDS:       &tds,
		PH:        &ph,
		Timestamp: &ts,
	}
}
