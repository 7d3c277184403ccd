// Package knowledge builds a cross-domain graph over memory records.
//
// An Index assigns memories to keyword-defined domains. A Discoverer links
// categorized memories across domains by lexical similarity and classifies
// each link. A Synthesizer merges connected memories into named concepts and
// writes a derived semantic memory back to the store.
//
// Memory content is always read through memorystore.Store. Store failures are
// logged and never roll back in-memory state.
package knowledge
