// Package cli is responsible for parsing command-line arguments, layering
// them over the settings file, and mapping build errors to process exit
// codes. It translates CLI flags into the application's internal
// configuration.
package cli
