// Package memory holds the agent's three memory tiers.
//
// Each tier has its own lifetime and backing store:
//   - facts: long-term preferences and facts, persisted in SQLite
//   - episodic: completed-task episodes, indexed in an embedded vector store
//   - session: per-thread conversation history, held in process memory
//
// Tiers are namespaced by user ID. Session history is additionally keyed
// by thread ID and is the only tier that does not survive a restart.
//
// Integration with the agent engine:
//   - context load: facts and preferences are injected into the system prompt
//   - episode recall: similar past episodes are retrieved before reasoning
//   - episode store: successful turns are written back after completion
//
// Embedders:
//   - hash: deterministic hash-based vectors (tests, offline demos)
//   - onnx: all-MiniLM-L6-v2 via onnxruntime (real semantic search, build tag "onnx")
package memory
