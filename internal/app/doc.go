// Package app contains the core application logic. It wires a loaded build
// file into the dependency graph, the scheduler and the optional status and
// event surfaces, decoupled from any specific entrypoint like a CLI.
package app
