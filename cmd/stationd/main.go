// Command stationd runs an automated half-duplex voice station: it listens
// on a radio's audio channel, transcribes what it hears, generates a reply,
// and transmits it with PTT keying and identification timing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/airwave-labs/stationd/pkg/adapters/llm"
	"github.com/airwave-labs/stationd/pkg/adapters/stt"
	"github.com/airwave-labs/stationd/pkg/adapters/tts"
	"github.com/airwave-labs/stationd/pkg/compliance"
	"github.com/airwave-labs/stationd/pkg/configutil"
	"github.com/airwave-labs/stationd/pkg/errorsx"
	"github.com/airwave-labs/stationd/pkg/hardware"
	"github.com/airwave-labs/stationd/pkg/logging"
	"github.com/airwave-labs/stationd/pkg/metrics"
	"github.com/airwave-labs/stationd/pkg/monitor"
	"github.com/airwave-labs/stationd/pkg/providers/deepgram"
	"github.com/airwave-labs/stationd/pkg/providers/mock"
	"github.com/airwave-labs/stationd/pkg/providers/openai"
	"github.com/airwave-labs/stationd/pkg/runner"
	"github.com/airwave-labs/stationd/pkg/station"
	"github.com/airwave-labs/stationd/pkg/transmit"
	"github.com/airwave-labs/stationd/pkg/vox"
)

type deepgramSTTSettings struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

type deepgramTTSSettings struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type openAISettings struct {
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	BaseURL      string  `mapstructure:"base_url"`
	SystemPrompt string  `mapstructure:"system_prompt"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	MaxHistory   int     `mapstructure:"max_history"`
	NoThink      *bool   `mapstructure:"no_think"`
}

type mockSTTSettings struct {
	Transcript string `mapstructure:"transcript"`
}

type mockTTSSettings struct {
	ToneHz      float64 `mapstructure:"tone_hz"`
	ToneSeconds float64 `mapstructure:"tone_seconds"`
}

type mockLLMSettings struct {
	ResponseText string `mapstructure:"response_text"`
	Echo         *bool  `mapstructure:"echo"`
}

func buildSTT(cfg station.VendorConfig, logger *slog.Logger) (stt.Transcriber, error) {
	switch cfg.Provider {
	case "deepgram":
		var s deepgramSTTSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(s.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.NewSTT(deepgram.STTConfig{APIKey: s.APIKey, Model: s.Model, Language: s.Language}, logger), nil
	case "mock":
		var s mockSTTSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, err
		}
		return mock.NewSTT(mock.STTConfig{Transcript: s.Transcript}), nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Provider)
	}
}

func buildTTS(cfg station.VendorConfig, logger *slog.Logger) (tts.Synthesizer, error) {
	switch cfg.Provider {
	case "deepgram":
		var s deepgramTTSSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(s.APIKey, "vendors.tts.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.NewTTS(deepgram.TTSConfig{APIKey: s.APIKey, Model: s.Model}, logger), nil
	case "mock":
		var s mockTTSSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, err
		}
		return mock.NewTTS(mock.TTSConfig{ToneHz: s.ToneHz, ToneSeconds: s.ToneSeconds}), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.Provider)
	}
}

func buildLLM(cfg station.VendorConfig, callsign string, logger *slog.Logger) (llm.Responder, error) {
	switch cfg.Provider {
	case "openai", "ollama":
		var s openAISettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(s.Model, "vendors.llm.settings.model"); err != nil {
			return nil, err
		}
		prompt := s.SystemPrompt
		if prompt == "" {
			prompt = "You are " + callsign + ", an automated amateur radio station. " +
				"Keep replies short, plain, and suitable for voice over radio."
		}
		return openai.NewResponder(openai.Config{
			APIKey:       s.APIKey,
			Model:        s.Model,
			BaseURL:      s.BaseURL,
			SystemPrompt: prompt,
			Temperature:  s.Temperature,
			MaxTokens:    s.MaxTokens,
			MaxHistory:   s.MaxHistory,
			NoThink:      configutil.BoolValue(s.NoThink, cfg.Provider == "ollama"),
		}, logger), nil
	case "mock":
		var s mockLLMSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, err
		}
		return mock.NewLLM(mock.LLMConfig{ResponseText: s.ResponseText, Echo: configutil.BoolValue(s.Echo, false)}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func buildObserver(cfg station.ObservabilityConfig, logger *slog.Logger) metrics.Observer {
	if cfg.MetricsFile == "" {
		return metrics.NoopObserver{}
	}
	f, err := os.OpenFile(cfg.MetricsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
		return metrics.NoopObserver{}
	}
	return metrics.NewJSONLObserver(f)
}

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to config file")
	dryRun := pflag.Bool("dry-run", false, "use system mic/speakers, no PTT")
	monitorMode := pflag.Bool("monitor", false, "just show audio levels (for calibrating the squelch threshold)")
	logLevel := pflag.String("log-level", "", "override configured log level")
	pflag.Parse()

	cfg, err := station.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, err := logging.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	logger.Info("stationd starting", "callsign", cfg.Callsign, "dry_run", *dryRun)

	dev, err := hardware.Open(hardware.Config{
		AudioDevice: cfg.Hardware.AudioDevice,
		SerialPort:  cfg.Hardware.SerialPort,
		BaudRate:    cfg.Hardware.BaudRate,
		SampleRate:  cfg.Hardware.SampleRate,
		Channels:    cfg.Hardware.Channels,
		PTTSettle:   time.Duration(cfg.Hardware.PTTSettleMS) * time.Millisecond,
		VendorID:    cfg.Hardware.VendorID,
		ProductID:   cfg.Hardware.ProductID,
	}, *dryRun, logger)
	if err != nil {
		logger.Error("hardware init failed", "error", err)
		if errorsx.HasReason(err, errorsx.ReasonDeviceNotFound) {
			fmt.Fprintln(os.Stderr, "audio device not found; is the adapter plugged in? Try --dry-run.")
		}
		if errorsx.HasReason(err, errorsx.ReasonSerialNotFound) {
			fmt.Fprintln(os.Stderr, "serial PTT port not found; set hardware.serial_port or use --dry-run.")
		}
		os.Exit(1)
	}

	if *monitorMode {
		logger.Info("monitor mode, showing audio levels",
			"threshold_dbfs", cfg.VOX.ThresholdDBFS)
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		src, err := dev.OpenInputStream(cfg.VOX.BlockSize)
		if err != nil {
			logger.Error("input stream failed", "error", err)
			dev.Close()
			os.Exit(1)
		}
		if err := monitor.Run(ctx, src, os.Stdout); err != nil {
			logger.Error("monitor failed", "error", err)
		}
		dev.Close()
		return
	}

	sttAdapter, err := buildSTT(cfg.Vendors.STT, logger)
	if err != nil {
		logger.Error("stt init failed", "error", err)
		dev.Close()
		os.Exit(1)
	}
	ttsAdapter, err := buildTTS(cfg.Vendors.TTS, logger)
	if err != nil {
		logger.Error("tts init failed", "error", err)
		dev.Close()
		os.Exit(1)
	}
	llmAdapter, err := buildLLM(cfg.Vendors.LLM, cfg.Callsign, logger)
	if err != nil {
		logger.Error("llm init failed", "error", err)
		dev.Close()
		os.Exit(1)
	}
	logger.Info("vendors ready",
		"stt", sttAdapter.Name(), "tts", ttsAdapter.Name(), "llm", llmAdapter.Name())

	observer := buildObserver(cfg.Observability, logger)
	policy := compliance.NewManager(cfg.Callsign, configutil.Seconds(cfg.IDIntervalSec, 10*time.Minute), logger)

	rec := vox.NewRecorder(
		func(blockSize int) (vox.BlockSource, error) { return dev.OpenInputStream(blockSize) },
		vox.Config{
			ThresholdDBFS: cfg.VOX.ThresholdDBFS,
			HangTime:      configutil.Seconds(cfg.VOX.HangTimeSec, 1500*time.Millisecond),
			MinDuration:   configutil.Seconds(cfg.VOX.MinTransmissionSec, 500*time.Millisecond),
			MaxDuration:   configutil.Seconds(cfg.VOX.MaxTransmissionSec, 2*time.Minute),
			BlockSize:     cfg.VOX.BlockSize,
			SampleRate:    cfg.Hardware.SampleRate,
			Channels:      cfg.Hardware.Channels,
			PollInterval:  time.Duration(cfg.VOX.PollIntervalMS) * time.Millisecond,
		},
		logger,
	)

	pipeline := transmit.NewPipeline(dev, dev, rec, transmit.Config{
		Guard:        configutil.Seconds(cfg.VOX.TxGuardSec, 500*time.Millisecond),
		ArtifactsDir: artifactsDirFor(cfg.Observability),
	}, observer, logger)

	shutdown := station.NewShutdown(func() {
		policy.RequestShutdown()
		rec.Stop()
	}, logger)

	session := station.NewSession(
		station.SessionConfig{
			SampleRate:   cfg.Hardware.SampleRate,
			ArtifactsDir: cfg.Observability.ArtifactsDir,
			RecordAudio:  cfg.Observability.RecordAudio,
		},
		rec, pipeline, dev,
		sttAdapter, ttsAdapter, llmAdapter,
		policy, shutdown, observer, logger,
	)

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("signal received, shutting down (repeat to force quit)")
		shutdown.Request()
		<-sigs
		logger.Info("force quit")
		shutdown.Force()
		dev.Close()
		os.Exit(1)
	}()

	life := runner.NewLifecycleRunner(nil, runner.Hooks{
		OnStart: func() { logger.Info("listening") },
		OnStop:  func() { logger.Info("stopped") },
	}, 30*time.Second)

	if err := life.Run(context.Background(), session.Run); err != nil {
		logger.Error("session failed", "error", err)
		os.Exit(1)
	}
}

// artifactsDirFor gates transmit-side archiving on the same switch as the
// receive side.
func artifactsDirFor(cfg station.ObservabilityConfig) string {
	if !cfg.RecordAudio {
		return ""
	}
	return cfg.ArtifactsDir
}
