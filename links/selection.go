package links

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Outcome tells how a selection was obtained from the raw model response.
type Outcome string

const (
	// OutcomeParsed means the whole response was a valid JSON object.
	OutcomeParsed Outcome = "parsed"
	// OutcomeExtracted means a JSON object was found inside surrounding prose.
	OutcomeExtracted Outcome = "extracted"
	// OutcomeFallback means the response could not be parsed, no links are selected.
	OutcomeFallback Outcome = "fallback"
)

// Link is a sub-page the model considers relevant for the brochure.
type Link struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// UnmarshalJSON accepts any JSON value as type, so one odd entry doesn't discard the
// whole selection. Numbers and booleans are formatted, a missing type stays empty.
func (l *Link) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type any    `json:"type"`
		URL  string `json:"url"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.URL = raw.URL
	l.Type = ""
	if raw.Type != nil {
		l.Type = fmt.Sprint(raw.Type)
	}

	return nil
}

// Selection is the parsed result of a link selection. Links is never nil.
type Selection struct {
	Links   []Link  `json:"links"`
	Outcome Outcome `json:"-"`
	Raw     string  `json:"-"`
}

// Unparsable distinguishes "the response was garbage" from "no relevant links".
func (s Selection) Unparsable() bool {
	return s.Outcome == OutcomeFallback
}

// objectPattern matches the first '{' to the last '}' across lines.
var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseSelection parses a model response. It never fails: strict JSON is tried first,
// then the first {...} span, and finally an empty selection is returned.
func ParseSelection(raw string) Selection {
	if links, ok := decode(raw); ok {
		return Selection{Links: links, Outcome: OutcomeParsed, Raw: raw}
	}

	if span := objectPattern.FindString(raw); span != "" {
		if links, ok := decode(span); ok {
			return Selection{Links: links, Outcome: OutcomeExtracted, Raw: raw}
		}
	}

	return Selection{Links: []Link{}, Outcome: OutcomeFallback, Raw: raw}
}

func decode(s string) ([]Link, bool) {
	// Only a JSON object can carry a "links" key; null and other values don't count.
	if !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return nil, false
	}

	var sel struct {
		Links []Link `json:"links"`
	}

	if err := json.Unmarshal([]byte(s), &sel); err != nil {
		return nil, false
	}

	if sel.Links == nil {
		sel.Links = []Link{}
	}

	return sel.Links, true
}

// Resolve returns the absolute URL of a link. URLs that don't start with "http" are
// appended to origin as-is, without path-aware joining: "https://a.test/" + "/about"
// gives "https://a.test//about".
func Resolve(origin, link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}

	return origin + link
}
