package ir

// Version constants for the record model and the tool.
const (
	// SchemaVersion is the record model version understood by this module.
	SchemaVersion = "1"

	// ToolVersion is the mondai release version.
	ToolVersion = "0.3.0"
)
