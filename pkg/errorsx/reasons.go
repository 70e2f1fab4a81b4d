package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonDeviceNotFound ReasonCode = "device_not_found"
	ReasonSerialNotFound ReasonCode = "serial_not_found"
	ReasonSerialIO       ReasonCode = "serial_io"

	ReasonCapture  ReasonCode = "audio_capture"
	ReasonPlayback ReasonCode = "audio_playback"

	ReasonSTTTranscribe ReasonCode = "stt_transcribe"
	ReasonLLMGenerate   ReasonCode = "llm_generate"
	ReasonTTSSynthesize ReasonCode = "tts_synthesize"
)
