package metadatastore

// TotalChunksPending is written to Chunk.TotalChunks for rows inserted
// during streaming ingestion, before the file's true chunk count is known.
// The streaming processor overwrites it in a fill-in pass once ingestion of
// that file completes.
const TotalChunksPending = -1

// Chunk is the durable, ordered unit of retrieval described by the data
// model: stable once inserted except for the one-time TotalChunks fill-in.
type Chunk struct {
	ID           int64
	FileHash     string
	FilePath     string
	FileName     string
	FileType     string
	FileSize     int64
	ModifiedDate string
	Text         string
	ChunkIndex   int
	TotalChunks  int

	// SymbolNames is a comma-joined list of code symbols (functions,
	// classes, types) whose source text overlaps this chunk. Empty for
	// chunks from files with no registered language, or for prose chunks.
	// Populated by internal/symbols as a metadata annotation pass; it
	// never influences chunk boundaries or count.
	SymbolNames string
}

// IndexMetadata is the singleton diagnostic row recording the vector
// index's current mode/backend, checked on startup against the configured
// mode to detect a stale on-disk index.
type IndexMetadata struct {
	Mode         string
	UseBinary    bool
	Dim          int
	TotalVectors int
	LastUpdated  string
}

// BM25Result is one match from the optional FTS5 secondary ranking signal.
type BM25Result struct {
	ID    int64
	Score float64
}
