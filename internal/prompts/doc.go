// Package prompts manages the summary prompt library.
//
// A prompt directory holds plain-text prompts ("<name>.txt", the file body is
// the system prompt and the output keeps the prompt's file name) and YAML
// definitions ("<name>.yaml") that can rename the output or request chunked
// processing for long inputs:
//
//	name: 要点
//	output: 要点总结.md
//	chunked: false
//	prompt: |
//	  请总结以下内容的要点……
//
// Every prompt in the directory runs during the summarize step.
package prompts
