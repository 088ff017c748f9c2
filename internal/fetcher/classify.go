package fetcher

import (
	"bytes"
	"net/http"

	"Sentinel6G/internal/domain"
)

const sniffLen = 512

var challengeMarkers = [][]byte{
	[]byte("incapsula"),
	[]byte("cf-chl"),
	[]byte("challenge-platform"),
	[]byte("attention required"),
	[]byte("access denied"),
	[]byte("captcha"),
	[]byte("please verify you are a human"),
	[]byte("ray id:"),
	[]byte("just a moment..."),
}

var feedMarkers = [][]byte{
	[]byte("<?xml"),
	[]byte("<rss"),
	[]byte("<feed"),
	[]byte("<rdf:rdf"),
}

// feedRoots are the document elements of the XML feed formats.
var feedRoots = feedMarkers[1:]

var escapedFeedMarkers = [][]byte{
	[]byte("&lt;?xml"),
	[]byte("&lt;rss"),
	[]byte("&lt;feed"),
}

// LooksLikeFeed reports whether the payload starts like RSS, Atom, RDF or JSON Feed.
// Markup after the feed root, such as HTML in a CDATA summary, does not count.
func LooksLikeFeed(payload []byte) bool {
	head := bytes.TrimPrefix(bytes.TrimSpace(payload), []byte("\xef\xbb\xbf"))
	head = bytes.ToLower(bytes.TrimSpace(head))
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.HasPrefix(head, []byte("{")) {
		return bytes.Contains(head, []byte("jsonfeed.org"))
	}

	html := bytes.Index(head, []byte("<html"))
	root := -1
	for _, marker := range feedRoots {
		if i := bytes.Index(head, marker); i >= 0 && (root < 0 || i < root) {
			root = i
		}
	}
	if root >= 0 {
		return html < 0 || root < html
	}
	return html < 0 && bytes.HasPrefix(head, []byte("<?xml"))
}

// IsHTML reports whether the payload is an HTML document.
func IsHTML(payload []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(payload))
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	return bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("<!doctype html"))
}

// IsWrappedFeed reports whether an HTML document embeds a feed, as browsers
// and some bot walls do by escaping the XML inside a <pre> block.
func IsWrappedFeed(payload []byte) bool {
	lower := bytes.ToLower(payload)
	if !bytes.Contains(lower, []byte("<pre")) {
		return false
	}
	for _, marker := range escapedFeedMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	for _, marker := range feedMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsChallenge reports whether an HTML page is a bot-protection interstitial.
func IsChallenge(payload []byte) bool {
	lower := bytes.ToLower(payload)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Classify turns a completed HTTP exchange into an Outcome. Strategies share
// it so that "success" means the same thing regardless of transport.
func Classify(strategy domain.StrategyKind, status int, payload []byte, want domain.PayloadKind) Outcome {
	if status != 0 && (status < http.StatusOK || status >= http.StatusMultipleChoices) {
		return Blocked(strategy, status)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return Malformed(strategy, "empty response")
	}
	if want == domain.PayloadPage {
		return classifyPage(strategy, status, payload)
	}
	if LooksLikeFeed(payload) {
		return Success(strategy, payload)
	}
	if IsWrappedFeed(payload) {
		return Success(strategy, payload)
	}
	if IsChallenge(payload) {
		return Blocked(strategy, status)
	}
	if IsHTML(payload) {
		return Malformed(strategy, "html response instead of feed")
	}
	return Malformed(strategy, "unrecognised payload")
}

func classifyPage(strategy domain.StrategyKind, status int, payload []byte) Outcome {
	if IsChallenge(payload) {
		return Blocked(strategy, status)
	}
	if IsHTML(payload) {
		return Success(strategy, payload)
	}
	return Malformed(strategy, "expected an html page")
}
