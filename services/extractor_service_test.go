package services

import (
	"testing"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		want     string
		wantErr  error
	}{
		{"text", []byte("hello world"), "a.txt", "hello world", nil},
		{"markdown upper-case extension", []byte("# Title"), "README.MD", "# Title", nil},
		{"unsupported", []byte("data"), "a.docx", "", models.ErrValidation},
		{"no extension", []byte("data"), "Makefile", "", models.ErrValidation},
		{"blank", []byte(" \n\t"), "a.txt", "", models.ErrValidation},
		{"invalid utf-8", []byte{0xff, 0xfe, 0xfd}, "a.txt", "", models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText(tt.data, tt.filename)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractText_BrokenPDF(t *testing.T) {
	_, err := ExtractText([]byte("not a pdf"), "a.pdf")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrValidation)
}

func TestIsSupportedDocument(t *testing.T) {
	assert.True(t, IsSupportedDocument("a.txt"))
	assert.True(t, IsSupportedDocument("dir/b.Md"))
	assert.True(t, IsSupportedDocument("c.pdf"))
	assert.False(t, IsSupportedDocument("d.go"))
	assert.False(t, IsSupportedDocument("e"))
}
