// Package symbols enriches indexed chunks with the names of the code
// symbols (functions, methods, classes, types) they overlap, using
// tree-sitter grammars for the languages the chunker already recognizes by
// extension. It is a metadata annotation pass only: it never changes chunk
// boundaries or chunk count, and a file in an unrecognized language simply
// gets no symbols.
package symbols
