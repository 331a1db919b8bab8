// Package dag holds the task graph: the registry of task definitions, the
// dependency edges between them (explicit and inferred from shared
// artifacts), cycle validation and the cached topological order the
// scheduler walks.
//
// A Graph is filled with Register and then sealed by Build. After Build it
// is immutable and safe for concurrent reads.
package dag
