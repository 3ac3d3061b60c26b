package ir

// Version constants for the spec model and the tool.
const (
	// SpecFormatVersion is the spec-definition schema version.
	SpecFormatVersion = "1"

	// ToolVersion is the specforge version stamped into history records.
	ToolVersion = "0.1.0"
)
