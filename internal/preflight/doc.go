// Package preflight provides readiness checks for the external tools,
// credentials, and filesystem paths summify depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll at startup so a missing ffmpeg or empty prompt
//     library shows up before the first job fails on it.
//   - The CLI "summify status" command prints RunAll and, on request,
//     CheckLLM to confirm the AI backend accepts the configured key.
//
// Checks never fail hard: they report and let the operator decide.
package preflight
