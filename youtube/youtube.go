// Package youtube extracts video transcripts, bypassing the generic HTML
// readability pipeline entirely for recognised YouTube URLs (§4.6).
package youtube

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	ytHostRe  = regexp.MustCompile(`(?i)(^|\.)youtube\.com$`)
)

// MatchURL recognises youtube.com/watch, youtu.be, /embed/, /v/, and
// /shorts/ URL shapes and extracts the 11-character video ID.
func MatchURL(rawURL string) (videoID string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Host)

	if host == "youtu.be" {
		return validID(strings.Trim(u.Path, "/"))
	}
	if !ytHostRe.MatchString(host) {
		return "", false
	}

	switch {
	case u.Path == "/watch":
		return validID(u.Query().Get("v"))
	case strings.HasPrefix(u.Path, "/embed/"):
		return validID(strings.TrimPrefix(u.Path, "/embed/"))
	case strings.HasPrefix(u.Path, "/v/"):
		return validID(strings.TrimPrefix(u.Path, "/v/"))
	case strings.HasPrefix(u.Path, "/shorts/"):
		return validID(strings.TrimPrefix(u.Path, "/shorts/"))
	default:
		return "", false
	}
}

func validID(candidate string) (string, bool) {
	candidate = strings.SplitN(candidate, "/", 2)[0]
	if videoIDRe.MatchString(candidate) {
		return candidate, true
	}
	return "", false
}

// WatchURL builds the canonical watch-page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
