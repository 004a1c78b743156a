// Package sniffer identifies avatar image formats from their leading bytes.
package sniffer

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strings"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
	FormatSVG  Format = "svg"
)

// HeadSize is how many leading bytes Sniff needs to decide.
const HeadSize = 512

var ErrUnsupportedFormat = errors.New("unsupported image format")

type Result struct {
	Format Format
	MIME   string
}

func (r Result) Extension() string {
	if r.Format == FormatJPEG {
		return "jpg"
	}
	return string(r.Format)
}

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

func Sniff(head []byte) (Result, error) {
	switch {
	case bytes.HasPrefix(head, jpegMagic):
		return Result{Format: FormatJPEG, MIME: "image/jpeg"}, nil
	case bytes.HasPrefix(head, pngMagic):
		return Result{Format: FormatPNG, MIME: "image/png"}, nil
	case bytes.HasPrefix(head, []byte("GIF87a")), bytes.HasPrefix(head, []byte("GIF89a")):
		return Result{Format: FormatGIF, MIME: "image/gif"}, nil
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP")):
		return Result{Format: FormatWEBP, MIME: "image/webp"}, nil
	case looksLikeSVG(head):
		return Result{Format: FormatSVG, MIME: "image/svg+xml"}, nil
	}
	return Result{}, ErrUnsupportedFormat
}

func looksLikeSVG(head []byte) bool {
	trimmed := strings.ToLower(strings.TrimSpace(string(head)))
	if strings.HasPrefix(trimmed, "<svg") {
		return true
	}
	return strings.HasPrefix(trimmed, "<?xml") && strings.Contains(trimmed, "<svg")
}

// DeclaredType returns the media type the client claimed for a multipart part,
// without parameters. Generic binary declarations count as no claim.
func DeclaredType(header http.Header) string {
	mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil || mediaType == "application/octet-stream" {
		return ""
	}
	return mediaType
}
