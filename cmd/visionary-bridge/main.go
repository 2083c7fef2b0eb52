// Command visionary-bridge runs the demand-gated transcoder. Frames come from
// the synthetic source; records are served over gRPC, one stream per topic,
// and statistics are exposed on the admin debug pages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/visionary.report/internal/config"
	"github.com/banshee-data/visionary.report/internal/monitoring"
	"github.com/banshee-data/visionary.report/internal/timeutil"
	"github.com/banshee-data/visionary.report/internal/version"
	"github.com/banshee-data/visionary.report/internal/visionary/admin"
	"github.com/banshee-data/visionary.report/internal/visionary/demand"
	"github.com/banshee-data/visionary.report/internal/visionary/frame"
	"github.com/banshee-data/visionary.report/internal/visionary/projection"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
	"github.com/banshee-data/visionary.report/internal/visionary/synthetic"
	"github.com/banshee-data/visionary.report/internal/visionary/transcode"
	"github.com/banshee-data/visionary.report/internal/visionary/transport"
)

var (
	configPath    = flag.String("config", "", "Path to a .json or .yaml bridge config")
	listen        = flag.String("listen", "", "gRPC listen address (overrides config)")
	adminListen   = flag.String("admin", "", "Admin HTTP address (overrides config)")
	frameID       = flag.String("frame-id", "", "Coordinate frame stamped on records (overrides config)")
	frameRate     = flag.Float64("frame-rate", 0, "Synthetic frames per second (overrides config)")
	statsInterval = flag.Duration("stats-interval", 0, "Statistics log interval (overrides config)")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

var logf = monitoring.Tagged("Bridge")

// applyFlags copies explicitly set flags into cfg.
func applyFlags(cfg *config.BridgeConfig, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = listen
		case "admin":
			cfg.AdminAddr = adminListen
		case "frame-id":
			cfg.FrameID = frameID
		case "frame-rate":
			cfg.FrameRate = frameRate
		case "stats-interval":
			s := statsInterval.String()
			cfg.StatsInterval = &s
		}
	})
}

func loadConfig() (*config.BridgeConfig, error) {
	cfg := &config.BridgeConfig{}
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	applyFlags(cfg, flag.CommandLine)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// pipeline is the wired bridge minus the listeners.
type pipeline struct {
	cfg        *config.BridgeConfig
	bus        *transport.Bus
	transcoder *transcode.Transcoder
	generator  *synthetic.Generator
}

func pointSource(cfg *config.BridgeConfig) frame.PointSource {
	opts := []projection.Option{projection.WithDistanceScale(cfg.GetDistanceScale())}
	if cfg.HasMount() {
		t, r := cfg.GetMountTranslation(), cfg.GetMountRotation()
		opts = append(opts, projection.WithMount(projection.Mount{
			Rotation:    quat.Number{Real: r.W, Imag: r.X, Jmag: r.Y, Kmag: r.Z},
			Translation: r3.Vec{X: t.X, Y: t.Y, Z: t.Z},
		}))
	}
	return projection.New(opts...)
}

func newPipeline(cfg *config.BridgeConfig) (*pipeline, error) {
	gen, err := synthetic.NewGenerator(synthetic.Config{
		Width:     cfg.GetWidth(),
		Height:    cfg.GetHeight(),
		FrameRate: cfg.GetFrameRate(),
		FrameID:   cfg.GetFrameID(),
	})
	if err != nil {
		return nil, err
	}
	bus := transport.NewBus()
	return &pipeline{
		cfg:        cfg,
		bus:        bus,
		transcoder: transcode.New(demand.NewGate(bus), bus, pointSource(cfg)),
		generator:  gen,
	}, nil
}

func (p *pipeline) handleFrame(meta records.Header, f *frame.SensorFrame) {
	p.transcoder.TranscodeAndPublish(meta, f)
}

func (p *pipeline) logStats() {
	ts := p.transcoder.Stats()
	bs := p.bus.Stats()

	var produced, failed uint64
	for _, c := range ts.Channels {
		produced += c.Produced
		failed += c.Failed
	}
	logf("%s: frames=%s records=%s failed=%d subscribers=%d sent=%s dropped=%s",
		p.cfg.GetSensorID(),
		humanize.Comma(int64(ts.Frames)),
		humanize.Comma(int64(produced)),
		failed,
		len(bs.Subscribers),
		humanize.Bytes(bs.TotalBytes()),
		humanize.Comma(int64(bs.TotalDropped())),
	)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("visionary-bridge"))
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	p, err := newPipeline(cfg)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}
	defer p.bus.Close()

	server := transport.NewServer(p.bus, transport.ServerConfig{
		ListenAddr:       cfg.GetListenAddr(),
		MaxMessageBytes:  cfg.GetMaxMessageBytes(),
		SubscriberBuffer: cfg.GetSubscriberBuffer(),
	})
	if err := server.Start(); err != nil {
		log.Fatalf("failed to start gRPC server: %v", err)
	}
	defer server.Stop()

	logf("%s starting: %dx%d @ %.1f Hz, frame_id=%s",
		version.String("visionary-bridge"), cfg.GetWidth(), cfg.GetHeight(), cfg.GetFrameRate(), cfg.GetFrameID())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.generator.Run(ctx, timeutil.RealClock{}, p.handleFrame); err != nil && !errors.Is(err, context.Canceled) {
			logf("frame source stopped: %v", err)
		}
	}()

	if interval := cfg.GetStatsInterval(); interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					p.logStats()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	if addr := cfg.GetAdminAddr(); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mux := http.NewServeMux()
			admin.AttachAdminRoutes(mux, admin.Sources{
				Bus:        p.bus,
				Transcoder: p.transcoder,
				Server:     server,
				Started:    time.Now(),
			})
			srv := &http.Server{Addr: addr, Handler: mux}

			go func() {
				logf("admin pages on http://%s/debug/", addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logf("admin server failed: %v", err)
					stop()
				}
			}()

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logf("admin shutdown error: %v", err)
				_ = srv.Close()
			}
		}()
	}

	wg.Wait()
	p.logStats()
	logf("graceful shutdown complete")
}
