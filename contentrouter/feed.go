package contentrouter

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/use-agent/peel/models"
)

// rssFeed mirrors the subset of RSS 2.0 fields the spec cares about.
type rssFeed struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
		} `xml:"item"`
	} `xml:"channel"`
}

// atomFeed mirrors the subset of Atom fields the spec cares about.
type atomFeed struct {
	Entries []struct {
		Title   string `xml:"title"`
		Link    struct {
			Href string `xml:"href,attr"`
		} `xml:"link"`
		Summary string `xml:"summary"`
		Content string `xml:"content"`
	} `xml:"entry"`
}

type feedItem struct {
	title string
	link  string
	desc  string
}

// routeFeed detects RSS 2.0 vs Atom by the presence of <channel> vs <feed>
// and emits each item as a level-2 markdown section with a 200-char preview.
func routeFeed(sourceURL string, body []byte) (*models.PeelResult, bool, error) {
	items, err := parseFeedItems(body)
	if err != nil {
		return nil, true, models.NewPeelError(models.ErrCodeParse, "failed to parse feed", err)
	}

	var sb strings.Builder
	var links []models.Link
	for _, it := range items {
		fmt.Fprintf(&sb, "## %s\n\n", it.title)
		if it.link != "" {
			fmt.Fprintf(&sb, "%s\n\n", it.link)
			links = append(links, models.Link{URL: it.link, Text: it.title})
		}
		sb.WriteString(previewText(it.desc, 200))
		sb.WriteString("\n\n")
	}

	result := finish(sourceURL, strings.TrimSpace(sb.String()), &models.DocumentMeta{Kind: "feed"}, links, 0.9)
	return result, true, nil
}

func parseFeedItems(body []byte) ([]feedItem, error) {
	var rss rssFeed
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		items := make([]feedItem, len(rss.Channel.Items))
		for i, it := range rss.Channel.Items {
			items[i] = feedItem{title: it.Title, link: it.Link, desc: it.Description}
		}
		return items, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err != nil {
		return nil, err
	}
	items := make([]feedItem, len(atom.Entries))
	for i, e := range atom.Entries {
		desc := e.Summary
		if desc == "" {
			desc = e.Content
		}
		items[i] = feedItem{title: e.Title, link: e.Link.Href, desc: desc}
	}
	return items, nil
}

// previewText truncates s to n runes, preferring a strings.Fields join so
// description HTML doesn't leave half-stripped tags in the preview.
func previewText(s string, n int) string {
	s = stripTagsRough(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func stripTagsRough(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
