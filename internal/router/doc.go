// Package router implements the tiered decision engine that maps a
// natural-language query to a handler name. Tier 1 evaluates ordered
// per-handler regex rules with zero I/O. Tier 2 combines a lexical
// relevance score against each handler's keyword corpus with the cosine
// similarity of the query embedding against each handler's example
// corpus. Tier 3 falls back to the full-reasoning handler when the top
// combined score is below the confidence threshold. Every call appends
// one routing decision audit record.
package router
