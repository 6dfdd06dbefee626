package keyword

import (
	"fmt"
	"strings"
)

// Suggest rewrites query replacing every term absent from the index with the closest indexed
// term within maxDistance edits. Closer terms win, then more frequent ones. ok is false when
// no term was replaced.
func (b *BleveIndex) Suggest(query string, maxDistance int) (string, bool, error) {
	if maxDistance <= 0 {
		maxDistance = 2
	}
	dict, err := b.termFrequencies()
	if err != nil {
		return "", false, err
	}

	terms := tokenize(query)
	changed := false
	for i, term := range terms {
		if _, known := dict[term]; known {
			continue
		}
		if best, ok := closestTerm(term, dict, maxDistance); ok {
			terms[i] = best
			changed = true
		}
	}
	if !changed {
		return query, false, nil
	}
	return strings.Join(terms, " "), true, nil
}

// termFrequencies collects every analyzed term of the text fields with its document count.
func (b *BleveIndex) termFrequencies() (map[string]uint64, error) {
	dict := make(map[string]uint64)
	for _, field := range textFields {
		fd, err := b.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s terms: %w", field, err)
		}
		for {
			entry, err := fd.Next()
			if err != nil {
				_ = fd.Close()
				return nil, fmt.Errorf("failed to read %s terms: %w", field, err)
			}
			if entry == nil {
				break
			}
			dict[entry.Term] += entry.Count
		}
		if err := fd.Close(); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

func closestTerm(term string, dict map[string]uint64, maxDistance int) (string, bool) {
	var (
		best     string
		bestDist = maxDistance + 1
		bestFreq uint64
	)
	termLen := len([]rune(term))
	for candidate, freq := range dict {
		diff := len([]rune(candidate)) - termLen
		if diff > maxDistance || -diff > maxDistance {
			continue
		}
		d := editDistance(term, candidate)
		if d > maxDistance {
			continue
		}
		if d < bestDist || (d == bestDist && (freq > bestFreq || (freq == bestFreq && candidate < best))) {
			best, bestDist, bestFreq = candidate, d, freq
		}
	}
	return best, best != ""
}
