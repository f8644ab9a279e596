// Package staging sweeps the pipeline work directory. Each record gets a
// work_dir/<record id> folder holding chunk debug files; Clean removes the
// folders of deleted records and those untouched for longer than the
// retention window.
package staging
