// Package metadatastore persists Chunk records — the durable, ordered
// companion to the in-memory vector index — in a WAL-mode SQLite database.
// It owns chunk id allocation, hash/path lookups, and the singleton index
// metadata row used for startup mode-consistency checks.
package metadatastore
