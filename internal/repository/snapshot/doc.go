// Package snapshot persists the build metadata snapshot (PROJECT.json).
//
// The FileRepository writes the descriptor values, the creation timestamps
// and the build provenance as indented JSON produced through protobuf's
// structpb/protojson, and reads it back into a Snapshot.
package snapshot
