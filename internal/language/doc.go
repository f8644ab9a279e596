// Package language normalizes the transcription language setting. Whisper
// and FunASR both take short ISO 639 codes; users write anything from
// "English" to "zh-CN".
package language
