// Package pipeline orchestrates the chunker, embedder, vector index, and
// metadata store into the streaming ingestion and search surface. Processor
// implements the per-file/per-directory ingestion algorithm; Pipeline wraps
// it as the process-wide singleton, owning mode switches and the on-disk
// lock that keeps two processes from sharing one cache directory.
package pipeline
