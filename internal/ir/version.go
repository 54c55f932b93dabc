package ir

// Version constants for the persisted rule format and the miner.
const (
	// IRVersion is the rule/evidence schema version.
	IRVersion = "1"

	// EngineVersion is the SInC miner version.
	EngineVersion = "0.1.0"
)
