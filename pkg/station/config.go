package station

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Callsign      string              `mapstructure:"callsign"`
	IDIntervalSec float64             `mapstructure:"id_interval_sec"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	LogDir        string              `mapstructure:"log_dir"`
	Hardware      HardwareConfig      `mapstructure:"hardware"`
	VOX           VOXConfig           `mapstructure:"vox"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type HardwareConfig struct {
	AudioDevice  string `mapstructure:"audio_device"`
	SerialPort   string `mapstructure:"serial_port"`
	BaudRate     int    `mapstructure:"baud_rate"`
	SampleRate   int    `mapstructure:"sample_rate"`
	Channels     int    `mapstructure:"channels"`
	PTTSettleMS  int    `mapstructure:"ptt_settle_ms"`
	VendorID     string `mapstructure:"vendor_id"`
	ProductID    string `mapstructure:"product_id"`
}

type VOXConfig struct {
	ThresholdDBFS      float64 `mapstructure:"threshold_dbfs"`
	HangTimeSec        float64 `mapstructure:"hang_time_sec"`
	MinTransmissionSec float64 `mapstructure:"min_transmission_sec"`
	MaxTransmissionSec float64 `mapstructure:"max_transmission_sec"`
	BlockSize          int     `mapstructure:"block_size"`
	PollIntervalMS     int     `mapstructure:"poll_interval_ms"`
	TxGuardSec         float64 `mapstructure:"tx_guard_sec"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
	LLM VendorConfig `mapstructure:"llm"`
}

type ObservabilityConfig struct {
	ArtifactsDir string `mapstructure:"artifacts_dir"`
	RecordAudio  bool   `mapstructure:"record_audio"`
	MetricsFile  string `mapstructure:"metrics_file"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("id_interval_sec", 600)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_dir", "")
	v.SetDefault("hardware.audio_device", "AIOC")
	v.SetDefault("hardware.serial_port", "auto")
	v.SetDefault("hardware.baud_rate", 9600)
	v.SetDefault("hardware.sample_rate", 48000)
	v.SetDefault("hardware.channels", 1)
	v.SetDefault("hardware.ptt_settle_ms", 300)
	v.SetDefault("vox.threshold_dbfs", -40)
	v.SetDefault("vox.hang_time_sec", 1.5)
	v.SetDefault("vox.min_transmission_sec", 0.5)
	v.SetDefault("vox.max_transmission_sec", 120)
	v.SetDefault("vox.block_size", 1024)
	v.SetDefault("vox.poll_interval_ms", 500)
	v.SetDefault("vox.tx_guard_sec", 0.5)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.record_audio", false)
	v.SetDefault("observability.metrics_file", "")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Callsign) == "" {
		return fmt.Errorf("callsign is required")
	}
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	if c.IDIntervalSec <= 0 {
		return fmt.Errorf("id_interval_sec must be positive")
	}
	if c.VOX.MinTransmissionSec > c.VOX.MaxTransmissionSec {
		return fmt.Errorf("vox.min_transmission_sec exceeds vox.max_transmission_sec")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	cfg.Callsign = os.ExpandEnv(cfg.Callsign)
	cfg.Hardware.SerialPort = os.ExpandEnv(cfg.Hardware.SerialPort)
	cfg.Observability.ArtifactsDir = os.ExpandEnv(cfg.Observability.ArtifactsDir)
	cfg.Observability.MetricsFile = os.ExpandEnv(cfg.Observability.MetricsFile)
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}
