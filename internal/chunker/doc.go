// Package chunker splits document text into paragraph-aware chunks with a
// bounded maximum size and a small overlap carried between adjacent chunks.
package chunker
