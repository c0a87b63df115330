package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanComment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims and collapses whitespace", "  so \n\t good  ", "so good"},
		{"caps laughter", "재밌다 ㅋㅋㅋㅋㅋ", "재밌다 ㅋㅋ"},
		{"caps punctuation", "what?!!!!", "what?!!"},
		{"keeps short runs", "wow!! ㅎㅎ", "wow!! ㅎㅎ"},
		{"symbols only", "!!! ???", ""},
		{"jamo only", "ㅋㅋㅋㅋ", ""},
		{"empty", "   ", ""},
		{"digits count as content", "10/10", "10/10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanComment(tt.in))
		})
	}
}
