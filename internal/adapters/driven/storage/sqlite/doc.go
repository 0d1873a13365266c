// Package sqlite provides a SQLite-backed implementation of driven.VectorStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Queries go through jmoiron/sqlx.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Embeddings are stored as little-endian float32 BLOBs.
//
// # Search
//
// Similarity search is a brute-force cosine scan in insertion order, which
// keeps ties stable. It suits corpora of up to a few hundred thousand passages;
// use the postgres store for larger indexes.
//
// # Data Location
//
// By default, the database is stored at ~/.groundwork/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
