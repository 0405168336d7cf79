package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Extraction methods recorded on each Speech.
const (
	MethodSpeakingBlock     = "speaking-block"
	MethodParagraphFallback = "paragraph-fallback"
)

// Speech is one extracted utterance from a Congressional Record granule.
// Text is always non-empty after whitespace normalization.
type Speech struct {
	Speaker    string
	BioguideID string
	Text       string
	Method     string
}

// FromMarkup extracts speeches from the raw markup of one granule document.
// It first collects <speaking> blocks, the structural marker the record uses
// to demarcate one member's continuous remarks. When the document carries no
// such blocks it falls back to paragraph-level extraction. A document with
// neither yields an empty slice; merely-empty or unparseable input is not an
// error. Extraction is pure: the same input always yields the same output.
func FromMarkup(raw []byte) []Speech {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil || root == nil {
		return nil
	}
	if speeches := speakingBlocks(root); len(speeches) > 0 {
		return speeches
	}
	return paragraphs(root)
}

// speakingBlocks walks the parse tree for <speaking> elements in document
// order and emits one Speech per block with non-empty normalized text.
func speakingBlocks(root *html.Node) []Speech {
	var out []Speech
	var dfs func(*html.Node)
	dfs = func(n *html.Node) {
		if n.Type == html.ElementNode && tagName(n) == "speaking" {
			text := compactWhitespace(innerText(n))
			if text != "" {
				speaker, bioguide := speakerFromAttrs(n)
				if speaker == "" {
					speaker = speakerFromHeading(n)
				}
				out = append(out, Speech{
					Speaker:    speaker,
					BioguideID: bioguide,
					Text:       text,
					Method:     MethodSpeakingBlock,
				})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
		}
	}
	dfs(root)
	return out
}

// paragraphs is the fallback strategy for documents without speaking blocks.
// It selects paragraph elements, drops procedural boilerplate, and emits one
// Speech per surviving paragraph. Speaker recovery here is best-effort only:
// a leading all-caps name token followed by a period is taken as the speaker,
// anything else leaves the speaker empty.
func paragraphs(root *html.Node) []Speech {
	doc := goquery.NewDocumentFromNode(root)

	var texts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Text())
	})
	if len(texts) == 0 {
		// Plain-text and <pre>-wrapped documents have no paragraph tags;
		// blank-line runs separate their paragraphs instead.
		texts = blankLineSplit(doc.Find("body").Text())
	}

	var out []Speech
	for _, t := range texts {
		text := compactWhitespace(t)
		if text == "" || isBoilerplate(text) {
			continue
		}
		out = append(out, Speech{
			Speaker: leadingSpeakerName(text),
			Text:    text,
			Method:  MethodParagraphFallback,
		})
	}
	return out
}

// tagName lowercases the element name and strips any namespace prefix.
func tagName(n *html.Node) string {
	name := strings.ToLower(n.Data)
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func innerText(n *html.Node) string {
	var b strings.Builder
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
		}
	}
	dfs(n)
	return b.String()
}

// speakerFromAttrs reads the speaker and bioguide identifiers from the
// attribute spellings the record has used over the years. The parser
// lowercases attribute keys, so matching is on the lowercased form.
func speakerFromAttrs(n *html.Node) (speaker, bioguide string) {
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "speaker", "speaker_name", "who":
			if speaker == "" {
				speaker = strings.TrimSpace(attr.Val)
			}
		case "bioguideid", "bioguide_id":
			if bioguide == "" {
				bioguide = strings.TrimSpace(attr.Val)
			}
		}
	}
	return speaker, bioguide
}

// speakerFromHeading recovers a speaker from an immediately preceding
// heading-like sibling when the block itself carries no speaker attribute.
func speakerFromHeading(n *html.Node) string {
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.TextNode && strings.TrimSpace(prev.Data) == "" {
			continue
		}
		if prev.Type != html.ElementNode {
			return ""
		}
		switch tagName(prev) {
		case "h1", "h2", "h3", "h4", "h5", "h6", "header":
			text := compactWhitespace(innerText(prev))
			if m := headingNameRe.FindStringSubmatch(text); m != nil {
				return m[1]
			}
		}
		return ""
	}
	return ""
}

// namePattern matches an optional honorific followed by an all-caps surname,
// optionally qualified with a state ("Mr. SMITH of Texas").
const namePattern = `(?:(?:Mr|Mrs|Ms|Miss|Dr)\.\s+)?([A-Z][A-Z'\-]+(?:\s+[A-Z][A-Z'\-]+)*(?:\s+of\s+[A-Z][A-Za-z]+)?)`

var (
	leadingNameRe = regexp.MustCompile(`^` + namePattern + `\.\s`)
	headingNameRe = regexp.MustCompile(`^` + namePattern + `\.?$`)

	// Page markers like "[Page H123]" or "[[Page S45]]".
	pageMarkerRe = regexp.MustCompile(`^\[\[?Page\s+[^\]]+\]\]?$`)
	// Horizontal-rule separators made of underscores or dashes.
	separatorRe = regexp.MustCompile(`^[_\-=]{3,}$`)
)

func leadingSpeakerName(text string) string {
	if m := leadingNameRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// isBoilerplate reports whether a normalized paragraph is procedural filler
// rather than spoken content.
func isBoilerplate(text string) bool {
	return pageMarkerRe.MatchString(text) || separatorRe.MatchString(text)
}

func blankLineSplit(s string) []string {
	var out []string
	for _, chunk := range blankLineRe.Split(s, -1) {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	return out
}

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

// compactWhitespace collapses runs of whitespace, newlines included, into
// single spaces and trims the ends.
func compactWhitespace(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}
