package nhentai

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/vmunix/galleria/internal/gallery"
)

var (
	galleryLink     = regexp.MustCompile(`/g/(\d+)`)
	galleryPageLink = regexp.MustCompile(`/g/(\d+)/1`)
	countDigits     = regexp.MustCompile(`[\d,]+`)
	cdnServer       = regexp.MustCompile(`\d+`)
)

const noResults = "No results, sorry."

type listing struct {
	noResults bool
	total     int
	refs      []gallery.Ref
}

// parseDocument parses with scripting disabled so noscript children are
// elements rather than text.
func parseDocument(body []byte) (*goquery.Document, error) {
	node, err := html.ParseWithOptions(bytes.NewReader(body), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(node), nil
}

func assumption(u, field string, err error) error {
	return &gallery.AssumptionError{Source: gallery.SourceNhentai, URL: u, Field: field, Err: err}
}

// thumbServer reads the CDN shard from the thumbnail inside a.
func thumbServer(a *goquery.Selection) (int, bool) {
	src, ok := a.Find("noscript img").Attr("src")
	if !ok {
		src, ok = a.Find("img").Attr("data-src")
	}
	if !ok {
		return 0, false
	}
	m := cdnServer.FindString(src)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// parseListing reads one category listing page.
func parseListing(body []byte, u string) (*listing, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, assumption(u, "page", err)
	}

	if h3 := doc.Find("h3").First(); h3.Length() > 0 {
		if strings.TrimSpace(h3.Text()) == noResults {
			return &listing{noResults: true}, nil
		}
	}

	count := countDigits.FindString(doc.Find("span.count").First().Text())
	total, err := strconv.Atoi(strings.ReplaceAll(count, ",", ""))
	if err != nil {
		return nil, assumption(u, "span.count", err)
	}

	l := &listing{total: total}
	var perr error
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := galleryLink.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		id, _ := strconv.Atoi(m[1])
		server, ok := thumbServer(a)
		if !ok {
			perr = assumption(u, "thumbnail", fmt.Errorf("gallery %d has no thumbnail", id))
			return false
		}
		l.refs = append(l.refs, gallery.Ref{Source: gallery.SourceNhentai, ID: id, Server: server})
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return l, nil
}

// parseGalleryPage returns the CDN shard from a gallery's cover link.
func parseGalleryPage(body []byte, id int, u string) (int, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return 0, assumption(u, "page", err)
	}
	var server int
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !galleryPageLink.MatchString(href) {
			return true
		}
		server, found = thumbServer(a)
		return false
	})
	if !found {
		return 0, &gallery.AssumptionError{Source: gallery.SourceNhentai, GalleryID: id, URL: u, Field: "cover"}
	}
	return server, nil
}
