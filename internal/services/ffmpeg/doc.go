// Package ffmpeg wraps the audio extraction step: a source video or audio file
// becomes a filtered, loudness-normalised stereo AAC track that the
// transcription engines accept.
package ffmpeg
