package message

import "strings"

// MatchSubject reports whether subject matches pattern, where pattern may
// use GMSEC subject wildcards: "*" matches exactly one topic element, ">"
// matches one or more trailing elements and must be the pattern's final
// element.
func MatchSubject(pattern, subject string) bool {
	pElems := strings.Split(pattern, ".")
	sElems := strings.Split(subject, ".")

	for pi, elem := range pElems {
		if elem == ">" {
			// ">" must match one or more trailing elements.
			return pi < len(sElems)
		}

		if pi >= len(sElems) {
			return false
		}

		if elem != "*" && elem != sElems[pi] {
			return false
		}
	}

	return len(pElems) == len(sElems)
}
