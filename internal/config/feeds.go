package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Feed maps a calendar id to an ICS subscription URL.
type Feed struct {
	// CalendarID is the calendar address the feed belongs to.
	CalendarID string `yaml:"calendar"`
	// URL is the ICS endpoint; webcal:// is accepted.
	URL string `yaml:"url"`
}

type feedsFile struct {
	Feeds []Feed `yaml:"feeds"`
}

// LoadFeeds reads the YAML feed list at path.
//
//	feeds:
//	  - calendar: team@example.com
//	    url: https://calendar.example.com/team.ics
func LoadFeeds(path string) ([]Feed, error) {
	if path == "" {
		return nil, errors.New("feeds path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds: %w", err)
	}

	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse feeds: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Feeds))
	out := make([]Feed, 0, len(f.Feeds))
	for i, feed := range f.Feeds {
		feed.CalendarID = strings.TrimSpace(feed.CalendarID)
		feed.URL = normalizeFeedURL(strings.TrimSpace(feed.URL))

		if !strings.Contains(feed.CalendarID, "@") {
			return nil, fmt.Errorf("feed %d: invalid calendar id %q", i, feed.CalendarID)
		}
		u, err := url.Parse(feed.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("feed %d: invalid url for %s", i, feed.CalendarID)
		}
		if _, dup := seen[feed.CalendarID]; dup {
			return nil, fmt.Errorf("feed %d: duplicate calendar %s", i, feed.CalendarID)
		}
		seen[feed.CalendarID] = struct{}{}
		out = append(out, feed)
	}
	return out, nil
}

// normalizeFeedURL rewrites webcal:// subscriptions to https://.
func normalizeFeedURL(raw string) string {
	if rest, ok := strings.CutPrefix(raw, "webcal://"); ok {
		return "https://" + rest
	}
	return raw
}
