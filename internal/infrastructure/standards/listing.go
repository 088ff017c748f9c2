package standards

import (
	"bytes"
	"cmp"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// meetingDirPattern matches numbered meeting folders such as TSGR1_120,
// TSGR2_129bis or TSGS2_165_Fukuoka. Ad hoc folders without a number are skipped.
var meetingDirPattern = regexp.MustCompile(`^TSG[A-Z]*\d*_(\d+)`)

var reportExtensions = []string{".htm", ".html"}

var reportKeywords = []string{"report", "summary", "final", "minutes"}

type meetingDir struct {
	ID     string
	URL    string
	number int
}

// meetingDirs lists the meeting folders of a working-group listing, newest
// (highest meeting number) first. Folder URLs end with a slash.
func meetingDirs(listing []byte, listingURL string) ([]meetingDir, error) {
	doc, base, err := readListing(listing, listingURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var dirs []meetingDir
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		id := path.Base(strings.TrimSuffix(u.Path, "/"))
		m := meetingDirPattern.FindStringSubmatch(id)
		if m == nil || seen[id] {
			return
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return
		}
		seen[id] = true
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		dirs = append(dirs, meetingDir{ID: id, URL: u.String(), number: n})
	})

	slices.SortFunc(dirs, func(a, b meetingDir) int {
		if c := cmp.Compare(b.number, a.number); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return dirs, nil
}

// reportLink finds the first HTML file in a listing whose name says it is a
// meeting report. Word, PDF and zip reports are not readable here.
func reportLink(listing []byte, listingURL string) (string, bool) {
	doc, base, err := readListing(listing, listingURL)
	if err != nil {
		return "", false
	}
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		name := strings.ToLower(path.Base(u.Path))
		if hasAny(name, reportExtensions, strings.HasSuffix) && hasAny(name, reportKeywords, strings.Contains) {
			found = u.String()
			return false
		}
		return true
	})
	return found, found != ""
}

func readListing(listing []byte, listingURL string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, nil, fmt.Errorf("listing url %q: %w", listingURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(listing))
	if err != nil {
		return nil, nil, fmt.Errorf("read listing %s: %w", listingURL, err)
	}
	return doc, base, nil
}

func hasAny(s string, parts []string, match func(string, string) bool) bool {
	for _, p := range parts {
		if match(s, p) {
			return true
		}
	}
	return false
}
