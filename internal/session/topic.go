package session

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
)

const (
	// TopicRequest is published right before every page request is issued.
	TopicRequest = "ajax"
)

// ErrMalformedRequestURL is returned when a url does not end in a `<page>.<ext>` segment.
var ErrMalformedRequestURL = fmt.Errorf("malformed request url")

var pageRegex = regexp.MustCompile(`^([^.]+)\.([A-Za-z0-9]+)$`)

// PageTopics is what a request url is published as.
type PageTopics struct {
	Page string
	View string
}

// ParseTopics pulls the page name and view mode out of urls like `http://host/account.aspx?view=display`.
func ParseTopics(rawUrl string) (PageTopics, error) {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return PageTopics{}, fmt.Errorf("%w: %q: %w", ErrMalformedRequestURL, rawUrl, err)
	}
	groups := pageRegex.FindStringSubmatch(path.Base(parsed.Path))
	if len(groups) < 3 {
		return PageTopics{}, fmt.Errorf("%w: %q", ErrMalformedRequestURL, rawUrl)
	}
	return PageTopics{
		Page: groups[1],
		View: parsed.Query().Get("view"),
	}, nil
}

func (p PageTopics) suffixes() []string {
	out := []string{"_" + p.Page}
	if p.View != "" {
		out = append(out, "_"+p.Page+"_"+p.View)
	}
	return out
}

// Generic returns `url_<page>` and, when there is a view, `url_<page>_<view>`.
func (p PageTopics) Generic() []string {
	suffixes := p.suffixes()
	topics := make([]string, len(suffixes))
	for i, s := range suffixes {
		topics[i] = "url" + s
	}
	return topics
}

// Skin returns the skin qualified counterparts of Generic.
func (p PageTopics) Skin(skin string) []string {
	suffixes := p.suffixes()
	topics := make([]string, len(suffixes))
	for i, s := range suffixes {
		topics[i] = "skin_" + skin + s
	}
	return topics
}
