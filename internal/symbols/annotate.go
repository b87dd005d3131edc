package symbols

import "strings"

// AnnotateChunks maps each chunk in chunks to the comma-joined names of the
// symbols whose declaration text it contains. It is a pure text-containment
// heuristic rather than a line-range lookup: the chunker does not carry
// line numbers through its output, and containment is enough to tell a
// reader which function or type a chunk belongs to without requiring the
// chunker and the symbol extractor to agree on any shared coordinate
// system. The returned slice has exactly len(chunks) entries, in order,
// with "" for a chunk that overlaps no symbol.
func AnnotateChunks(chunks []string, syms []Symbol) []string {
	annotations := make([]string, len(chunks))
	if len(syms) == 0 {
		return annotations
	}

	for i, chunk := range chunks {
		var names []string
		seen := make(map[string]bool)
		for _, sym := range syms {
			if sym.Name == "" || seen[sym.Name] {
				continue
			}
			if strings.Contains(chunk, sym.Name) {
				names = append(names, sym.Name)
				seen[sym.Name] = true
			}
		}
		annotations[i] = strings.Join(names, ",")
	}
	return annotations
}
