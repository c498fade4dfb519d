// Package extract implements the per-line extraction rules of an action.
//
// Rules are compiled once per task (Compile) and then applied to every
// output line (Rules.Apply) in a fixed order:
//
//  1. store rules            - first match → Sink.Store
//  2. append-scalar rules    - first match → Sink.Append(IRString)
//  3. append-composite rules - one record per line → Sink.Append(IRRecord)
//  4. trigger rules          - on match → Sink.NewEvent for each event
//
// Triggers run last so any event they fire can observe the store and append
// effects of the same line.
//
// Patterns use Go's RE2 syntax. A match yields the first capture group when
// the pattern has groups, otherwise the whole match. An invalid pattern is a
// PatternError raised at compile time, i.e. when the owning task starts.
//
// Templates (Render) substitute {key} and {key[sub]} placeholders against
// the live store; an unresolved placeholder is a ConfigurationError, never
// an empty substitution.
package extract
