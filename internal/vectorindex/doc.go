// Package vectorindex stores chunk embeddings and answers nearest-neighbor
// queries over them. It exposes two concrete backends — BinaryIndex (packed
// Hamming search) and FloatIndex (L2 search) — behind a shared Index
// interface, since a mode switch requires a full rebuild rather than a
// runtime representation change.
package vectorindex
