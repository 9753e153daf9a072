// Package bridge runs a stdio JSON-RPC subprocess behind an HTTP endpoint.
//
// A Service owns one subprocess, the stdout framer, the call correlator and the
// HTTP server; several services can run side by side in one process.
// Run drives the command line: flags override the optional YAML config file,
// which overrides the defaults, and the returned code mirrors the subprocess exit code.
package bridge
