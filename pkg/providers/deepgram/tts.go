package deepgram

import (
	"context"
	"encoding/binary"
	"log/slog"

	speakapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/speak/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	speak "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/speak"

	"github.com/airwave-labs/stationd/pkg/adapters/tts"
	"github.com/airwave-labs/stationd/pkg/audiofile"
	"github.com/airwave-labs/stationd/pkg/errorsx"
	"github.com/airwave-labs/stationd/pkg/logging"
)

var _ tts.Synthesizer = (*TTS)(nil)

type TTSConfig struct {
	APIKey string
	Model  string
}

type TTS struct {
	cfg    TTSConfig
	rest   *speakapi.Client
	logger *slog.Logger
}

func NewTTS(cfg TTSConfig, logger *slog.Logger) *TTS {
	if cfg.Model == "" {
		cfg.Model = "aura-2-thalia-en"
	}
	c := speak.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &TTS{
		cfg:    cfg,
		rest:   speakapi.New(c),
		logger: logging.NewComponentLogger(logger, "deepgram_tts"),
	}
}

func (t *TTS) Name() string { return "deepgram_tts" }

// Synthesize requests raw linear16 at the transmit rate, so no resampling
// is needed on our side. The output is normalized to 90% peak; a full-scale
// signal overdeviates on FM.
func (t *TTS) Synthesize(ctx context.Context, text string, targetRate int) ([]int16, error) {
	options := &interfaces.SpeakOptions{
		Model:      t.cfg.Model,
		Encoding:   "linear16",
		SampleRate: targetRate,
		Container:  "none",
	}

	var buf interfaces.RawResponse
	if _, err := t.rest.ToStream(ctx, text, options, &buf); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}

	raw := buf.Bytes()
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	if len(samples) == 0 {
		t.logger.Error("synthesis returned no audio", "chars", len(text))
		return nil, nil
	}

	normalized := audiofile.Float32ToInt16(
		audiofile.NormalizePeak(audiofile.Int16ToFloat32(samples), 0.9),
	)
	t.logger.Info("synthesized",
		"seconds", float64(len(normalized))/float64(targetRate),
		"chars", len(text),
	)
	return normalized, nil
}
