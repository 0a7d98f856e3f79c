package source

import (
	"bytes"
	"errors"
	"path"
	"strings"

	"github.com/unveilai/unveil/internal/utils"
)

// ErrNotText is returned when file bytes cannot be decoded as text.
var ErrNotText = errors.New("content is not valid UTF-8 text")

var utf8ByteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// DecodeText returns the text held in raw. Invalid UTF-8 and NUL bytes are
// rejected with ErrNotText. A leading byte order mark is removed.
func DecodeText(raw []byte) (string, error) {
	trimmed := bytes.TrimPrefix(raw, utf8ByteOrderMark)
	if utils.IsBinary(trimmed) {
		return "", ErrNotText
	}
	return string(trimmed), nil
}

// TextDecoder implements the decoder used by the tree builder with DecodeText.
type TextDecoder struct{}

// Decode calls DecodeText.
func (TextDecoder) Decode(raw []byte) (string, error) {
	return DecodeText(raw)
}

var supportedTextExtensions = []string{
	".txt", ".js", ".jsx", ".ts", ".tsx", ".md", ".json", ".yaml", ".yml",
	".html", ".css", ".scss", ".less", ".py", ".java", ".rb", ".php", ".go",
	".rust", ".c", ".cpp", ".h", ".hpp", ".cs", ".swift", ".kt", ".rs",
	".vue", ".svelte", ".config", ".env", ".gitignore", ".dockerignore",
	".sh", ".bash", ".zsh", ".fish", ".ps1", ".bat", ".cmd",
}

// IsSupportedFile reports whether a file name is on the text allow-list.
// Names without a dot (Makefile, LICENSE) are always supported.
func IsSupportedFile(name string) bool {
	baseName := path.Base(utils.NormalizeSlashes(name))
	if !strings.Contains(baseName, ".") {
		return true
	}
	lowerName := strings.ToLower(baseName)
	for _, extension := range supportedTextExtensions {
		if strings.HasSuffix(lowerName, extension) {
			return true
		}
	}
	return false
}
