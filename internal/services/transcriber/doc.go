// Package transcriber turns extracted audio into a plain-text transcript by
// driving one of three speech-to-text CLIs:
//
//   - whisper: the openai-whisper command, accepts an initial prompt
//   - whisperx: WhisperX launched through uvx, reading its JSON segments
//   - paraformer: FunASR's paraformer models with VAD and punctuation
//     restoration (ignores the initial prompt)
//
// Whatever the engine, the transcript lands at "<output>/<base>_转写.md".
// Engine selection and model size come from configuration and may be
// overridden per job.
package transcriber
