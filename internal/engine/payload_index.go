package engine

import (
	"encoding/json"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vexdb/vexdb/internal/domain"
)

// payloadIndex is an inverted index from payload key/value terms to the slots
// holding a matching point. Filters resolve to bitmap intersections, so a
// filtered scan only visits matching slots.
//
// Terms are extracted from the payload's top-level scalar fields only. Values
// canonicalize to strings: strings verbatim, numbers by their JSON literal,
// booleans as "true"/"false". A filter {key: "k", equals: "1"} therefore
// matches both {"k":"1"} and {"k":1}. Nulls, nested objects and arrays are
// not indexed and never match.
type payloadIndex struct {
	postings map[string]*roaring.Bitmap
}

func newPayloadIndex() *payloadIndex {
	return &payloadIndex{
		postings: make(map[string]*roaring.Bitmap),
	}
}

func (idx *payloadIndex) add(slot uint32, terms []string) {
	for _, t := range terms {
		bm, ok := idx.postings[t]
		if !ok {
			bm = roaring.New()
			idx.postings[t] = bm
		}
		bm.Add(slot)
	}
}

func (idx *payloadIndex) remove(slot uint32, terms []string) {
	for _, t := range terms {
		bm, ok := idx.postings[t]
		if !ok {
			continue
		}
		bm.Remove(slot)
		if bm.IsEmpty() {
			delete(idx.postings, t)
		}
	}
}

// candidates intersects the postings for all filters. A filter with no
// postings short-circuits to an empty bitmap.
func (idx *payloadIndex) candidates(filters []domain.Filter) *roaring.Bitmap {
	result := roaring.New()
	for i, f := range filters {
		bm, ok := idx.postings[indexTerm(f.Key, f.Equals)]
		if !ok {
			return roaring.New()
		}
		if i == 0 {
			result.Or(bm)
			continue
		}
		result.And(bm)
		if result.IsEmpty() {
			return result
		}
	}
	return result
}

func indexTerm(key, value string) string {
	return key + "\x00" + value
}

// payloadTerms extracts index terms from a payload JSON string. A payload
// that is empty, not valid JSON, or not a JSON object yields no terms; the
// parse failure never propagates.
func payloadTerms(payload string) []string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil
	}

	// json.Number keeps the literal text, so {"i":1} indexes as "1" and
	// {"i":1.5} as "1.5".
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil
	}

	terms := make([]string, 0, len(obj))
	for key, value := range obj {
		switch v := value.(type) {
		case string:
			terms = append(terms, indexTerm(key, v))
		case json.Number:
			terms = append(terms, indexTerm(key, v.String()))
		case bool:
			if v {
				terms = append(terms, indexTerm(key, "true"))
			} else {
				terms = append(terms, indexTerm(key, "false"))
			}
		}
	}
	return terms
}
