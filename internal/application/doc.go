// Package application wires the provider configuration loader, storage,
// compute backend, HTTP handlers and server together, keeping the main
// package focused on CLI parsing and orchestration.
package application
