package config

const (
	defaultConfigPath         = "~/.config/summify/config.toml"
	defaultDataDir            = "~/.local/share/summify"
	defaultUploadSubdir       = "uploads"
	defaultOutputSubdir       = "outputs"
	defaultPromptsSubdir      = "prompts"
	defaultWorkSubdir         = "tempdata"
	defaultLogSubdir          = "logs"
	defaultRecordsFile        = "records.json"
	defaultHistoryFile        = "history.db"
	defaultAPIBind            = "127.0.0.1:7488"
	defaultAIBackend          = "deepseek"
	defaultAIMaxTokens        = 8000
	defaultAITemperature      = 0.9
	defaultAIChunkSize        = 4000
	defaultAIThreads          = 4
	defaultAIMaxRetries       = 2
	defaultAIBackoffSeconds   = 1.0
	defaultAITimeoutSeconds   = 300
	defaultModelType          = "whisper"
	defaultWhisperModelSize   = "large-v3-turbo"
	defaultParaformerModel    = "paraformer-zh"
	defaultDevice             = "cpu"
	defaultWhisperBinary      = "whisper"
	defaultFunASRBinary       = "funasr"
	defaultVADModel           = "fsmn-vad"
	defaultPuncModel          = "ct-punc"
	defaultFFmpegBinary       = "ffmpeg"
	defaultMaxUploadMB        = 4096
	defaultWatchDebounceMS    = 1500
	defaultEventBufferSize    = 1024
	defaultShutdownTimeoutSec = 10
	defaultWorkRetentionHours = 168
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogMaxSizeMB       = 10
	defaultLogMaxBackups      = 5
)

// Backend defaults keyed by ai.backend.
var backendDefaults = map[string]struct {
	BaseURL string
	Model   string
	EnvKey  string
}{
	"deepseek": {BaseURL: "https://api.deepseek.com", Model: "deepseek-chat", EnvKey: "DEEPSEEK_API_KEY"},
	"openai":   {BaseURL: "https://api.openai.com/v1", Model: "gpt-4o", EnvKey: "OPENAI_API_KEY"},
	"claude":   {BaseURL: "https://api.anthropic.com", Model: "claude-3-5-sonnet-latest", EnvKey: "ANTHROPIC_API_KEY"},
	"gemini":   {BaseURL: "", Model: "gemini-2.5-flash", EnvKey: "GEMINI_API_KEY"},
}

// DefaultAllowedExtensions lists the upload types accepted by default.
var DefaultAllowedExtensions = []string{
	".mp4", ".avi", ".mkv", ".mov", ".flv", ".webm", ".m4v",
	".mp3", ".wav", ".m4a", ".aac", ".flac", ".ogg",
	".txt",
}

// Default returns a Config populated with repository defaults. Paths left
// empty are derived from data_dir during normalization.
func Default() Config {
	exts := make([]string, len(DefaultAllowedExtensions))
	copy(exts, DefaultAllowedExtensions)
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		AI: AI{
			Backend:            defaultAIBackend,
			MaxTokens:          defaultAIMaxTokens,
			Temperature:        defaultAITemperature,
			ChunkSize:          defaultAIChunkSize,
			Threads:            defaultAIThreads,
			MaxRetries:         defaultAIMaxRetries,
			BackoffBaseSeconds: defaultAIBackoffSeconds,
			TimeoutSeconds:     defaultAITimeoutSeconds,
		},
		Transcription: Transcription{
			ModelType:     defaultModelType,
			Device:        defaultDevice,
			WhisperBinary: defaultWhisperBinary,
			FunASRBinary:  defaultFunASRBinary,
			VADModel:      defaultVADModel,
			PuncModel:     defaultPuncModel,
		},
		Media: Media{
			FFmpegBinary:      defaultFFmpegBinary,
			AllowedExtensions: exts,
			MaxUploadMB:       defaultMaxUploadMB,
		},
		Workflow: Workflow{
			WatchUploads:       false,
			WatchDebounceMS:    defaultWatchDebounceMS,
			EventBufferSize:    defaultEventBufferSize,
			ShutdownTimeoutSec: defaultShutdownTimeoutSec,
			WorkRetentionHours: defaultWorkRetentionHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			OnComplete:     true,
			OnFailure:      true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
	}
}

// DefaultModelSize returns the model used when none is configured for modelType.
func DefaultModelSize(modelType string) string {
	if modelType == "paraformer" {
		return defaultParaformerModel
	}
	return defaultWhisperModelSize
}
