package whatsapp

import (
	"regexp"
	"strings"
)

var (
	driveFileRe = regexp.MustCompile(`drive\.google\.com/file/d/([a-zA-Z0-9_-]+)`)
	driveUCRe   = regexp.MustCompile(`drive\.google\.com/(?:uc|open)\?id=([a-zA-Z0-9_-]+)`)
)

// ProcessMediaURL rewrites Google Drive share links into their direct
// download form, which is the only shape the provider can fetch. Plain
// HTTP(S) URLs pass through untouched; anything else yields "".
func ProcessMediaURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}

	if m := driveFileRe.FindStringSubmatch(url); m != nil {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	if m := driveUCRe.FindStringSubmatch(url); m != nil {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}

	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return url
	}
	return ""
}
