package chunker

import "strings"

// runes whose repetitions are capped at two by CleanComment
const cappedRunes = "ㅋㅎ!?."

// CleanComment normalises a raw comment: trims it, collapses whitespace,
// caps repeated laughter and punctuation at two, and returns "" when nothing
// but symbols remain.
func CleanComment(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(collapsed))
	var prev rune
	run := 0
	for _, r := range collapsed {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run > 2 && strings.ContainsRune(cappedRunes, r) {
			continue
		}
		sb.WriteRune(r)
	}
	cleaned := sb.String()

	if contentChars(cleaned) == 0 {
		return ""
	}
	return cleaned
}
