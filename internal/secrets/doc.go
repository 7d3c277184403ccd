// Package secrets detects and redacts credentials and personal identifiers in
// user text before the engine persists or publishes it.
//
// Rules are an ordered table of regular expressions, each gated by optional
// keywords. Overlapping matches are merged into one redaction. Findings keep
// rule ids and offsets, never the matched text.
package secrets
