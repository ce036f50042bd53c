package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/d1nch8g/cuecam/api"
	"github.com/d1nch8g/cuecam/config"
	"github.com/d1nch8g/cuecam/detect"
	"github.com/d1nch8g/cuecam/engine"
	"github.com/d1nch8g/cuecam/link"
	"github.com/d1nch8g/cuecam/logger"
	"github.com/d1nch8g/cuecam/metrics"
	"github.com/d1nch8g/cuecam/sound"
	"github.com/d1nch8g/cuecam/sound/speaker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audio output and cue engine
	player := speaker.NewPlayer(speaker.PlayerConfig{
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		OutputChannels:  cfg.Audio.OutputChannels,
		Fade:            cfg.Audio.Fade,
		Reverb: sound.ReverbConfig{
			Decay: cfg.Audio.ReverbDecay,
			Wet:   cfg.Audio.ReverbWet,
		},
	}, zl.Named("speaker"))
	defer player.Close()

	cues := make([]engine.Cue, 0, len(cfg.Cues))
	for _, c := range cfg.Cues {
		cues = append(cues, engine.Cue{Category: engine.Category(c.Category), Asset: c.Asset})
	}
	eng := engine.NewEngine(engine.EngineConfig{
		Cues:       cues,
		BaseVolume: cfg.BaseVolume,
	}, player, zl.Named("engine"))

	// Start returns once loading is over; Ready is closed from here on if it succeeded
	if err := eng.Start(ctx); err != nil {
		var loadErr *engine.LoadError
		if !errors.As(err, &loadErr) {
			// Without an output device every cue degrades to silence
			zl.Error("audio engine not started, retry with POST /start", zap.Error(err))
		}
	}

	// Frames from the phone to the detector to the engine
	collector := metrics.NewCollector()
	scanner := detect.NewScanner()
	onFrame := func(msg link.FrameMessage) {
		report, err := scanner.Scan(msg.Frame)
		if err != nil {
			collector.ScanFailed()
			zl.Warn("failed to scan frame", zap.Error(err))
			return
		}
		collector.FrameScanned()
		zl.Debug("frame scanned", zap.Stringer("report", report))

		for _, ev := range report.Events() {
			if eng.Play(&ev) {
				collector.CuePlayed(string(ev.Category))
			}
		}
	}

	receiver := link.NewReceiver(link.ReceiverConfig{
		ICEServers: cfg.ICEServers,
		MaxFPS:     cfg.MaxFPS,
	}, onFrame, collector, zl.Named("link"))
	defer receiver.Close()

	signaler := link.NewSignaler(link.NewSessionID(), receiver, zl.Named("signal"))
	zl.Info("waiting for phone",
		zap.String("session_id", signaler.SessionID()),
		zap.String("phone_url", signaler.PhoneURL(cfg.PublicURL)),
	)

	router := api.NewRouter(api.NewHandlers(eng, zl.Named("api")), signaler, collector.Handler())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("http server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("stopping")

	eng.StopAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http server shutdown failed", zap.Error(err))
	}
}
