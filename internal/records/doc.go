// Package records owns the persistent file-record document.
//
// Every uploaded source file gets one FileRecord keyed by a stable id minted
// the first time the file is seen. The physical upload is stored as
// "<id>__<display name>" and its artifacts live under "<output_dir>/<id>", so a
// display name can change without breaking the on-disk links.
//
// The document is a small JSON file ({"version": 2, "records": [...]}) that is
// read, mutated and rewritten wholesale on every change. Store serialises
// those cycles with a process mutex plus an flock on "<path>.lock" so the
// daemon and one-shot CLI invocations can share it. A document that fails to
// parse is treated as empty; SyncWithUpload rebuilds records from the upload
// directory afterwards.
package records
