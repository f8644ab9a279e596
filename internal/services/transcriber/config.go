package transcriber

// Config captures runtime settings for transcription.
type Config struct {
	// ModelType selects the engine: whisper, whisperx or paraformer.
	ModelType string
	// ModelSize is the engine-specific model name (e.g. "large-v3-turbo",
	// "paraformer-zh").
	ModelSize string
	// Device is "cpu" or "gpu".
	Device        string
	Language      string
	WhisperBinary string
	FunASRBinary  string
	VADModel      string
	PuncModel     string
}

// Options carries per-job overrides. Empty fields fall back to Config.
type Options struct {
	ModelType string `json:"model_type,omitempty"`
	ModelSize string `json:"model_size,omitempty"`
}

// Engine names.
const (
	EngineWhisper    = "whisper"
	EngineWhisperX   = "whisperx"
	EngineParaformer = "paraformer"
)

// Defaults and external command names.
const (
	DefaultWhisperModel    = "large-v3-turbo"
	DefaultParaformerModel = "paraformer-zh"
	DefaultVADModel        = "fsmn-vad"
	DefaultPuncModel       = "ct-punc"
	ParaformerBatchSeconds = "300"

	WhisperCommand = "whisper"
	FunASRCommand  = "funasr"
	UVXCommand     = "uvx"

	CUDAIndexURL   = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL   = "https://pypi.org/simple"
	BatchSize      = "4"
	CPUComputeType = "float32"
	VADMethod      = "silero"
)

// TranscriptSuffix is appended to the display stem to name the transcript.
const TranscriptSuffix = "_转写.md"
