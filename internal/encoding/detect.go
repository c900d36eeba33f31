package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// NewUTF8Reader returns a reader that yields r decoded to UTF-8.
// contentType is the Content-Type header of the message, possibly empty.
//
// Detection order:
//  1. BOM (UTF-8 BOM is stripped; UTF-16 LE/BE is decoded)
//  2. A non-UTF-8 charset declared in contentType
//  3. Valid UTF-8 is returned as-is
//  4. Heuristic detection via chardet
//  5. Fallback to Windows-1252
func NewUTF8Reader(r io.Reader, contentType string) (io.Reader, error) {
	br := bufio.NewReader(r)

	buf, err := br.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peek: %w", err)
	}

	if bytes.HasPrefix(buf, bomUTF8) {
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	}

	if bytes.HasPrefix(buf, bomUTF16LE) {
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, decoder), nil
	}

	if bytes.HasPrefix(buf, bomUTF16BE) {
		decoder := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, decoder), nil
	}

	if charset := declaredCharset(contentType); charset != "" && charset != "utf-8" {
		if enc, err := htmlindex.Get(charset); err == nil {
			return transform.NewReader(br, enc.NewDecoder()), nil
		}
	}

	if utf8.Valid(buf) {
		return br, nil
	}

	result, detectErr := chardet.NewTextDetector().DetectBest(buf)
	if detectErr == nil {
		switch result.Charset {
		case "UTF-8":
			return br, nil
		case "ISO-8859-1", "windows-1252":
			return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
		case "ISO-8859-15":
			return transform.NewReader(br, charmap.ISO8859_15.NewDecoder()), nil
		}
	}

	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
}

// ReadAllUTF8 reads r to the end, decoded to UTF-8.
func ReadAllUTF8(r io.Reader, contentType string) ([]byte, error) {
	decoded, err := NewUTF8Reader(r, contentType)
	if err != nil {
		return nil, err
	}

	out, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return out, nil
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(params["charset"]))
}
