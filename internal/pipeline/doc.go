// Package pipeline runs the four processing steps for one file record:
//
//  1. extract    media file -> "<base>_audio.m4a"
//  2. transcribe audio -> "<base>_转写.md"
//  3. fix        transcript -> "<base>_fixed.txt" (chunked, parallel model calls)
//  4. summarize  text -> one output per prompt in the prompt library
//
// Callers pick any strictly ascending subset of steps. Each step reads the
// file produced by the previous step of the same run, or the conventional
// artifact on disk when it is the first selected step. The record is updated
// as soon as a step succeeds and the run stops at the first failure, keeping
// earlier updates.
//
// External tools run through Exec, which streams their combined output line
// by line, strips terminal control sequences, and drops progress-bar and
// metric noise before lines reach progress listeners.
package pipeline
