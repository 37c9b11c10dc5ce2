package domain

import "sort"

// SortDocuments ordena los documentos in situ por el valor de field, de
// forma estable. Los documentos sin el campo ordenan antes que los que lo
// tienen; valores de tipos no comparables entre sí caen a su
// representación textual.
func SortDocuments(docs []Document, field string, ascending bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		if ascending {
			return documentLess(docs[i], docs[j], field)
		}
		return documentLess(docs[j], docs[i], field)
	})
}

func documentLess(a, b Document, field string) bool {
	av, aok := a[field]
	bv, bok := b[field]
	if !aok {
		return bok
	}
	if !bok {
		return false
	}
	if cmp, ok := compareValues(av, bv); ok {
		return cmp < 0
	}
	return stringOf(av) < stringOf(bv)
}
