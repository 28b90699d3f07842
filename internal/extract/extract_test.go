package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
)

func TestText_PlainText(t *testing.T) {
	content := []byte("Plain text document content.")

	text, err := Text(content, "notes.txt")

	require.NoError(t, err)
	assert.Equal(t, "Plain text document content.", text)
}

func TestText_Markdown(t *testing.T) {
	content := []byte("# Heading\n\nBody paragraph.")

	text, err := Text(content, "README.md")

	require.NoError(t, err)
	assert.Contains(t, text, "Body paragraph.")
}

func TestText_UnsupportedExtension(t *testing.T) {
	_, err := Text([]byte("binary"), "image.png")

	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestText_ExtensionCaseInsensitive(t *testing.T) {
	text, err := Text([]byte("upper case extension"), "NOTES.TXT")

	require.NoError(t, err)
	assert.Equal(t, "upper case extension", text)
}

func TestText_InvalidUTF8(t *testing.T) {
	_, err := Text([]byte{0xff, 0xfe, 0xfd}, "broken.txt")

	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestText_CorruptPDF(t *testing.T) {
	_, err := Text([]byte("not a pdf at all"), "file.pdf")

	assert.Error(t, err)
}
