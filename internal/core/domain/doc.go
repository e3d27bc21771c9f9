// Package domain defines the core business entities for Migrato.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RecordID: An environment-local identifier of one live entity
//   - Record: A portable, dependency-annotated snapshot of one entity
//   - Dependency: A typed reference from a record to records of another kind
//   - VirtualKeyCodec: The codec for synthesized xmlIds
//   - Report: The per-record outcome of a synchronisation pass
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
