// Package file provides file-based settings loading for the refproc CLI.
//
// Settings load from a TOML file (./refproc.toml by default, overridable
// with --config), with environment variables layered on top for container
// deployments that mount no file at all. A missing file is not an error;
// the shipped defaults mirror the legacy batch job.
package file
