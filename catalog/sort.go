package catalog

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"sort"
)

// SortAlphabetically returns a copy of options ordered case- and accent-insensitively.
// Options comparing equal keep their relative order.
func SortAlphabetically(options []string) []string {
	if options == nil {
		return nil
	}
	sorted := make([]string, len(options))
	copy(sorted, options)

	collator := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(sorted, func(i, j int) bool {
		return collator.CompareString(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// IsAlphabetized reports whether options are already in SortAlphabetically order.
func IsAlphabetized(options []string) bool {
	collator := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	for i := 1; i < len(options); i++ {
		if collator.CompareString(options[i-1], options[i]) > 0 {
			return false
		}
	}
	return true
}
