// Package reflection generates meta-cognitive insights about the knowledge
// graph itself.
//
// A Generator runs three independent scans over the knowledge index, the
// discovered connections and the memory store:
//   - Gap: domains whose memory count falls well below the best-covered domain
//   - Conflict: high-confidence "contradicts" connections
//   - Growth: a burst of new memories within a trailing window
//
// Re-running Generate produces equivalent insights with fresh ids. Callers
// are expected to run it after a batch of new memories, not per event.
//
// # Usage
//
//	gen := reflection.NewGenerator(index, discoverer, store, reflection.ConfigFrom(cfg.Knowledge))
//	insights := gen.Generate(ctx)
package reflection
