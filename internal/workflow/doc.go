// Package workflow serializes pipeline jobs through a single background
// worker.
//
// The Scheduler keeps an unbounded FIFO of jobs. Enqueue validates the step
// selection and the file identity, appends the job, and returns at once; the
// worker goroutine starts on the first Enqueue and runs one job at a time
// until Stop. Heavy work such as model loads never overlaps across jobs; the
// only parallelism is the chunk fan-out inside a single job.
//
// Progress lines, completions, and failures are delivered to every listener
// registered with Subscribe and mirrored into the logging StreamHub for the
// API's long-poll endpoint. Each job's lifecycle is written to the history
// store, and ntfy notifications go out on completion and failure.
package workflow
