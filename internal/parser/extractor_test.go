package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextTxt(t *testing.T) {
	extractor, err := NewTextExtractor(context.Background())
	require.NoError(t, err)

	text, err := extractor.ExtractText(context.Background(), []byte("plain resume text"), "resume.txt")
	require.NoError(t, err)
	assert.Equal(t, "plain resume text", text)
}

func TestExtractTextTxtInvalidUTF8(t *testing.T) {
	extractor, err := NewTextExtractor(context.Background())
	require.NoError(t, err)

	text, err := extractor.ExtractText(context.Background(), []byte{'o', 'k', 0xff, '!'}, "RESUME.TXT")
	require.NoError(t, err)
	assert.Contains(t, text, "ok")
	assert.Contains(t, text, "�")
}

func TestExtractTextUnsupportedType(t *testing.T) {
	extractor, err := NewTextExtractor(context.Background())
	require.NoError(t, err)

	_, err = extractor.ExtractText(context.Background(), []byte("data"), "resume.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不支持的文件类型")
}
