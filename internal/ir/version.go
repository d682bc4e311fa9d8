package ir

// Version constants for the assertion model and engine.
const (
	// IRVersion is the contract model schema version.
	IRVersion = "1"

	// EngineVersion is the covenant engine version.
	EngineVersion = "0.1.0"
)
