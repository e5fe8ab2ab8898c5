package classifier

import (
	"io"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// MaxPageFindings caps each finding list of a single page analysis.
const MaxPageFindings = 50

// socialHosts are matched as substrings of iframe sources.
var socialHosts = []string{"facebook", "twitter", "linkedin", "instagram"}

// socialClassPrefixes are matched as substrings of div class attributes.
var socialClassPrefixes = []string{"fb-", "twitter-"}

// PageAnalysis is the surveillance-relevant content of one loaded page.
type PageAnalysis struct {
	// URL is the page URL.
	URL string `json:"url"`

	// TrackingPixels are images that look like beacons.
	TrackingPixels []TrackingPixel `json:"trackingPixels"`

	// SocialWidgets are embedded social network frames and placeholders.
	SocialWidgets []SocialWidget `json:"socialWidgets"`

	// Canvases are canvas elements that could be used for fingerprinting.
	Canvases []CanvasElement `json:"canvases"`

	// AnalyticsIDs are analytics and advertising account IDs found in scripts.
	AnalyticsIDs []AnalyticsID `json:"analyticsIds"`
}

// TrackingPixel is an image whose source or size suggests a beacon.
type TrackingPixel struct {
	Src        string `json:"src"`
	Dimensions string `json:"dimensions"`
	Hidden     bool   `json:"hidden"`
}

// SocialWidget is an embedded social network element.
type SocialWidget struct {
	// Type names the rule that matched, e.g. "iframe:facebook" or "div:fb-".
	Type string `json:"type"`
	Src  string `json:"src"`
}

// CanvasElement is a canvas found on the page.
type CanvasElement struct {
	Size   string `json:"size"`
	Hidden bool   `json:"hidden"`
}

// Empty reports whether the analysis found nothing.
func (p *PageAnalysis) Empty() bool {
	return len(p.TrackingPixels) == 0 && len(p.SocialWidgets) == 0 &&
		len(p.Canvases) == 0 && len(p.AnalyticsIDs) == 0
}

// PageAnalyzer extracts tracking pixels, social widgets, canvases and
// analytics IDs from markup.
type PageAnalyzer struct {
	// baseURL resolves relative image and frame sources.
	baseURL *url.URL
}

// NewPageAnalyzer creates a PageAnalyzer for the page at pageURL.
func NewPageAnalyzer(pageURL string) (*PageAnalyzer, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &PageAnalyzer{baseURL: u}, nil
}

// AnalyzePage is a convenience wrapper around NewPageAnalyzer and Analyze.
func AnalyzePage(pageURL string, content io.Reader) (*PageAnalysis, error) {
	a, err := NewPageAnalyzer(pageURL)
	if err != nil {
		return nil, err
	}
	return a.Analyze(content)
}

// Analyze parses content and walks the DOM once.
func (a *PageAnalyzer) Analyze(content io.Reader) (*PageAnalysis, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &PageAnalysis{
		URL:            a.baseURL.String(),
		TrackingPixels: make([]TrackingPixel, 0),
		SocialWidgets:  make([]SocialWidget, 0),
		Canvases:       make([]CanvasElement, 0),
		AnalyticsIDs:   make([]AnalyticsID, 0),
	}
	seenIDs := make(map[AnalyticsID]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			a.processElement(n, result)
			if n.Data == "script" {
				a.collectAnalyticsIDs(n, result, seenIDs)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

func (a *PageAnalyzer) processElement(n *html.Node, result *PageAnalysis) {
	switch n.Data {
	case "img":
		if len(result.TrackingPixels) >= MaxPageFindings {
			return
		}
		src := getAttr(n, "src")
		width, height := getAttr(n, "width"), getAttr(n, "height")
		lowered := strings.ToLower(src)
		onePixel := width == "1" && height == "1"
		if !strings.Contains(lowered, "track") && !strings.Contains(lowered, "pixel") && !onePixel {
			return
		}
		result.TrackingPixels = append(result.TrackingPixels, TrackingPixel{
			Src:        a.resolveURL(src),
			Dimensions: width + "x" + height,
			Hidden:     isTiny(width) || isTiny(height),
		})

	case "iframe":
		if len(result.SocialWidgets) >= MaxPageFindings {
			return
		}
		src := getAttr(n, "src")
		for _, host := range socialHosts {
			if strings.Contains(src, host) {
				result.SocialWidgets = append(result.SocialWidgets, SocialWidget{
					Type: "iframe:" + host,
					Src:  a.resolveURL(src),
				})
				return
			}
		}

	case "div":
		if len(result.SocialWidgets) >= MaxPageFindings {
			return
		}
		class := getAttr(n, "class")
		for _, prefix := range socialClassPrefixes {
			if strings.Contains(class, prefix) {
				result.SocialWidgets = append(result.SocialWidgets, SocialWidget{
					Type: "div:" + prefix,
					Src:  class,
				})
				return
			}
		}

	case "canvas":
		if len(result.Canvases) >= MaxPageFindings {
			return
		}
		style := strings.ReplaceAll(strings.ToLower(getAttr(n, "style")), " ", "")
		result.Canvases = append(result.Canvases, CanvasElement{
			Size:   canvasDimension(getAttr(n, "width"), "300") + "x" + canvasDimension(getAttr(n, "height"), "150"),
			Hidden: strings.Contains(style, "display:none"),
		})
	}
}

// collectAnalyticsIDs scans a script's source URL and inline text.
func (a *PageAnalyzer) collectAnalyticsIDs(n *html.Node, result *PageAnalysis, seen map[AnalyticsID]bool) {
	var sb strings.Builder
	sb.WriteString(getAttr(n, "src"))
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString("\n")
			sb.WriteString(c.Data)
		}
	}
	for _, id := range FindAnalyticsIDs(sb.String(), MaxPageFindings) {
		if len(result.AnalyticsIDs) >= MaxPageFindings {
			return
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		result.AnalyticsIDs = append(result.AnalyticsIDs, id)
	}
}

// resolveURL resolves href against the page URL; unparseable values are returned as is.
func (a *PageAnalyzer) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "data:") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return a.baseURL.ResolveReference(u).String()
}

// isTiny reports whether an explicit size attribute is at most one pixel.
func isTiny(v string) bool {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	return err == nil && n <= 1
}

// canvasDimension returns v, or the HTML default when the attribute is absent.
func canvasDimension(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// getAttr returns the value of the named attribute, or "".
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
