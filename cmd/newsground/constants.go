package main

// Default limits for CLI commands.
const (
	DefaultListLimit   = 50
	DefaultSearchLimit = 20
	DefaultExportLimit = 1000
	DefaultPopulate    = 100
)

// Valid export formats.
var validFormats = []string{"json", "csv", "markdown"}
