package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"camperwatch/internal/models"
	"camperwatch/internal/scrape"
)

// SourceKind identifies which extraction pass produced a candidate. When the
// same value shows up in several passes, JSON beats DOM beats regex.
type SourceKind string

const (
	KindJSON  SourceKind = "json"
	KindDOM   SourceKind = "dom"
	KindRegex SourceKind = "regex"
)

var kindPriority = map[SourceKind]int{KindJSON: 0, KindDOM: 1, KindRegex: 2}

// Candidate is one possible nightly rate found in the raw material.
type Candidate struct {
	Value        float64
	CurrencyHint models.Currency
	SourceKind   SourceKind
	RawSnippet   string
}

// priceKeys are the JSON keys treated as price-bearing when walking
// intercepted API payloads.
var priceKeys = []string{"price", "rate", "cost", "amount", "daily", "total"}

var priceRegexps = []struct {
	re  *regexp.Regexp
	cur models.Currency
}{
	{regexp.MustCompile(`€\s*([0-9][0-9.,]*)`), models.CurrencyEUR},
	{regexp.MustCompile(`([0-9][0-9.,]*)\s*€`), models.CurrencyEUR},
	{regexp.MustCompile(`\$\s*([0-9][0-9.,]*)`), models.CurrencyUSD},
	{regexp.MustCompile(`([0-9][0-9.,]*)\s*\$`), models.CurrencyUSD},
	{regexp.MustCompile(`(?i)EUR\s*([0-9][0-9.,]*)`), models.CurrencyEUR},
	{regexp.MustCompile(`(?i)USD\s*([0-9][0-9.,]*)`), models.CurrencyUSD},
	{regexp.MustCompile(`(?i)(?:from|ab|per night|/night|pro nacht|nightly)[^0-9€$]{0,12}([0-9][0-9.,]*)`), ""},
}

// domSelectors are queried in priority order against the rendered document.
var domSelectors = []string{
	"[data-price]",
	"[class*='price']",
	"[class*='rate']",
	"[itemprop='price']",
}

// Prices runs the full extraction pipeline over a strategy outcome:
// intercepted JSON first, then JSON embedded in script tags, then
// visible-text regexes, then DOM selectors. Results are deduplicated by
// value with the highest-priority source kept. The second return value
// counts candidates that parsed numerically but fell outside limits, so
// callers can log what was discarded.
func Prices(outcome *scrape.Outcome, limits Limits) ([]Candidate, int) {
	var (
		all     []Candidate
		dropped int
	)

	for _, payload := range outcome.JSONPayloads {
		all = append(all, fromJSON(payload, limits, &dropped)...)
	}
	if outcome.HTML != "" {
		all = append(all, fromScripts(outcome.HTML, limits, &dropped)...)
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(outcome.HTML))
		if err == nil {
			all = append(all, fromText(doc.Text(), limits, &dropped)...)
			all = append(all, fromDOM(doc, limits, &dropped)...)
		} else {
			all = append(all, fromText(outcome.HTML, limits, &dropped)...)
		}
	}

	return dedupe(all), dropped
}

// fromJSON walks a payload recursively. A node is a candidate iff its key
// matches a price-like token and its value is numeric and plausible.
func fromJSON(payload []byte, limits Limits, dropped *int) []Candidate {
	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil
	}
	var out []Candidate
	walkJSON("", root, limits, &out, dropped)
	return out
}

func walkJSON(key string, node any, limits Limits, out *[]Candidate, dropped *int) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			walkJSON(k, child, limits, out, dropped)
		}
	case []any:
		for _, child := range v {
			walkJSON(key, child, limits, out, dropped)
		}
	case float64:
		if !isPriceKey(key) {
			return
		}
		if limits.plausible(v) {
			*out = append(*out, Candidate{Value: v, SourceKind: KindJSON, RawSnippet: key})
		} else {
			*dropped++
		}
	case string:
		if isPriceKey(key) {
			f, ok := parseAmount(stripGlyphs(v), limits)
			if ok {
				*out = append(*out, Candidate{Value: f, CurrencyHint: glyphCurrency(v), SourceKind: KindJSON, RawSnippet: key + "=" + v})
			} else if f != 0 {
				*dropped++
			}
		}
	}
}

// fromScripts walks the document tree for script elements carrying embedded
// JSON: structured-data blocks (application/ld+json) and state objects
// assigned inline (window.__STATE__ = {...}). Found payloads go through the
// same JSON walk as intercepted API responses.
func fromScripts(htmlSrc string, limits Limits, dropped *int) []Candidate {
	root, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil
	}

	var out []Candidate
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			if payload := scriptJSON(n); payload != "" {
				out = append(out, fromJSON([]byte(payload), limits, dropped)...)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// scriptJSON returns the JSON payload of a script node, or "" when the node
// holds executable code with no extractable object.
func scriptJSON(n *html.Node) string {
	var content string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			content += c.Data
		}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	for _, a := range n.Attr {
		if a.Key == "type" && strings.Contains(a.Val, "ld+json") {
			return content
		}
	}
	if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
		return content
	}

	// Inline assignment: take the outermost object literal
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return ""
}

func isPriceKey(key string) bool {
	lower := strings.ToLower(key)
	for _, tok := range priceKeys {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// fromText applies the prioritized regex patterns to visible text.
func fromText(text string, limits Limits, dropped *int) []Candidate {
	var out []Candidate
	for _, pr := range priceRegexps {
		for _, m := range pr.re.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			v, ok := parseAmount(m[1], limits)
			if !ok {
				if v != 0 {
					*dropped++
				}
				continue
			}
			out = append(out, Candidate{
				Value:        v,
				CurrencyHint: pr.cur,
				SourceKind:   KindRegex,
				RawSnippet:   snippet(m[0]),
			})
		}
	}
	return out
}

// fromDOM extracts candidates from nodes matched by the selector list.
func fromDOM(doc *goquery.Document, limits Limits, dropped *int) []Candidate {
	var out []Candidate
	for _, sel := range domSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if attr, ok := s.Attr("data-price"); ok {
				if v, ok := parseAmount(attr, limits); ok {
					out = append(out, Candidate{Value: v, SourceKind: KindDOM, RawSnippet: snippet(attr)})
					return
				} else if v != 0 {
					*dropped++
				}
			}
			if attr, ok := s.Attr("content"); ok {
				if v, ok := parseAmount(attr, limits); ok {
					out = append(out, Candidate{Value: v, SourceKind: KindDOM, RawSnippet: snippet(attr)})
					return
				} else if v != 0 {
					*dropped++
				}
			}
			text := strings.TrimSpace(s.Text())
			if text == "" || len(text) > 80 {
				return
			}
			v, ok := parseAmount(stripGlyphs(text), limits)
			if !ok {
				if v != 0 {
					*dropped++
				}
				return
			}
			out = append(out, Candidate{
				Value:        v,
				CurrencyHint: glyphCurrency(text),
				SourceKind:   KindDOM,
				RawSnippet:   snippet(text),
			})
		})
	}
	return out
}

var nonNumeric = regexp.MustCompile(`[^0-9.,]`)

func stripGlyphs(s string) string {
	return strings.TrimSpace(nonNumeric.ReplaceAllString(s, ""))
}

func glyphCurrency(s string) models.Currency {
	switch {
	case strings.ContainsAny(s, "€") || strings.Contains(strings.ToUpper(s), "EUR"):
		return models.CurrencyEUR
	case strings.ContainsAny(s, "$") || strings.Contains(strings.ToUpper(s), "USD"):
		return models.CurrencyUSD
	}
	return ""
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

// dedupe keeps one candidate per value, preferring JSON over DOM over regex.
// RawSnippet of the winner is kept for auditing.
func dedupe(candidates []Candidate) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return kindPriority[candidates[i].SourceKind] < kindPriority[candidates[j].SourceKind]
	})
	seen := make(map[float64]struct{}, len(candidates))
	var out []Candidate
	for _, c := range candidates {
		if _, dup := seen[c.Value]; dup {
			continue
		}
		seen[c.Value] = struct{}{}
		out = append(out, c)
	}
	return out
}
