package ir

// EngineVersion is the cascade engine version recorded with each run.
const EngineVersion = "0.1.0"
