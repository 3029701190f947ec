package assembler

import (
	"strings"
	"unicode"
)

type wordSet map[string]struct{}

func words(text string) wordSet {
	set := make(wordSet)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = struct{}{}
	}
	return set
}

// overlap is |candidate ∩ kept| / |candidate|, or 0 for an empty candidate.
func overlap(candidate, kept wordSet) float64 {
	if len(candidate) == 0 {
		return 0
	}
	shared := 0
	for w := range candidate {
		if _, ok := kept[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(candidate))
}

type entry struct {
	item  item
	words wordSet
}

// dedup drops items whose words are mostly covered by an already kept item. When a new item
// covers kept ones instead, it takes the first one's place and the others are evicted, so the
// most complete copy survives whatever the input order and no kept pair covers each other.
func dedup(items []item, threshold float64) []item {
	kept := make([]entry, 0, len(items))
next:
	for _, it := range items {
		w := words(it.body)
		for i := range kept {
			if overlap(w, kept[i].words) > threshold {
				continue next
			}
		}

		slot := -1
		survivors := kept[:0]
		for _, e := range kept {
			if overlap(e.words, w) > threshold {
				if slot < 0 {
					slot = len(survivors)
					survivors = append(survivors, entry{item: it, words: w})
				}
				continue
			}
			survivors = append(survivors, e)
		}
		kept = survivors
		if slot < 0 {
			kept = append(kept, entry{item: it, words: w})
		}
	}

	out := make([]item, len(kept))
	for i, e := range kept {
		out[i] = e.item
	}
	return out
}
