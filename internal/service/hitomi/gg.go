package hitomi

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/vmunix/galleria/internal/gallery"
)

var (
	ggDefaultO = regexp.MustCompile(`var o = (\d+)`)
	ggCaseO    = regexp.MustCompile(`o = (\d+); break;`)
	ggCase     = regexp.MustCompile(`case (\d+):`)
	ggB        = regexp.MustCompile(`b: '(\d+/)'`)

	// hashTail captures the last three hex digits of a 64 digit file hash.
	hashTail = regexp.MustCompile(`/[0-9a-f]{61}([0-9a-f]{2})([0-9a-f])`)
	hostPart = regexp.MustCompile(`//..?\.hitomi\.la/`)
)

// signer holds the parameters hitomi publishes in gg.js. They rotate
// every few minutes and decide the host and path of every image URL.
type signer struct {
	defaultO int
	caseO    int
	cases    map[int]bool
	b        string
}

func parseGG(js string) (*signer, error) {
	field := func(re *regexp.Regexp, name string) (string, error) {
		m := re.FindStringSubmatch(js)
		if m == nil {
			return "", &gallery.AssumptionError{Source: gallery.SourceHitomi, Field: "gg.js " + name}
		}
		return m[1], nil
	}

	def, err := field(ggDefaultO, "default o")
	if err != nil {
		return nil, err
	}
	hit, err := field(ggCaseO, "case o")
	if err != nil {
		return nil, err
	}
	b, err := field(ggB, "b")
	if err != nil {
		return nil, err
	}

	g := &signer{b: b, cases: make(map[int]bool)}
	g.defaultO, _ = strconv.Atoi(def)
	g.caseO, _ = strconv.Atoi(hit)
	for _, m := range ggCase.FindAllStringSubmatch(js, -1) {
		n, _ := strconv.Atoi(m[1])
		g.cases[n] = true
	}
	return g, nil
}

// m returns the subdomain offset for g.
func (g *signer) m(n int) int {
	if g.cases[n] {
		return g.caseO
	}
	return g.defaultO
}

// s returns the path directory for a file hash.
func (g *signer) s(hash string) string {
	n, ok := hashNumber(hash)
	if !ok {
		return ""
	}
	return strconv.Itoa(n)
}

// hashNumber reads the last hex digit followed by the two before it.
func hashNumber(hash string) (int, bool) {
	if len(hash) < 3 {
		return 0, false
	}
	tail := hash[len(hash)-1:] + hash[len(hash)-3:len(hash)-1]
	n, err := strconv.ParseInt(tail, 16, 64)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// subdomain derives the host prefix for u. URLs without a file hash use "a".
func (g *signer) subdomain(u, base string) string {
	m := hashTail.FindStringSubmatch(u)
	if m == nil {
		return "a"
	}
	n, err := strconv.ParseInt(m[2]+m[1], 16, 64)
	if err != nil {
		return "a"
	}
	return string(rune('a'+g.m(int(n)))) + base
}

func (g *signer) rehost(u, base string) string {
	return hostPart.ReplaceAllLiteralString(u, "//"+g.subdomain(u, base)+".hitomi.la/")
}

// imageURL builds the URL of an image file, preferring webp.
func (g *signer) imageURL(f *gallery.File) string {
	dir, ext, base := "images", f.Ext, "b"
	if f.HasWebP {
		dir, ext, base = "webp", "webp", "a"
	}
	u := fmt.Sprintf("https://a.hitomi.la/%s/%s%s/%s.%s", dir, g.b, g.s(f.Hash), f.Hash, ext)
	return g.rehost(u, base)
}

// videoURL builds the URL of an anime gallery's video.
func (g *signer) videoURL(f *gallery.File) string {
	return g.rehost("https://g.hitomi.la/videos/"+f.Name+"."+f.Ext, "")
}

// Refresh downloads gg.js and replaces the signing parameters.
func (s *Service) Refresh(ctx context.Context) error {
	body, err := s.get(ctx, s.baseURL+"/gg.js")
	if err != nil {
		return fmt.Errorf("fetch gg.js: %w", err)
	}
	g, err := parseGG(string(body))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.gg = g
	s.mu.Unlock()
	s.log.Info("gg.js refreshed", "b", g.b, "cases", len(g.cases))
	return nil
}

func (s *Service) signer(ctx context.Context) (*signer, error) {
	s.mu.RLock()
	g := s.gg
	s.mu.RUnlock()
	if g != nil {
		return g, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gg, nil
}

// BuildFileURL returns the current download URL for f. gg.js is fetched
// on first use.
func (s *Service) BuildFileURL(ctx context.Context, _ *gallery.Metadata, f *gallery.File) (string, error) {
	g, err := s.signer(ctx)
	if err != nil {
		return "", err
	}
	if f.IsVideo {
		return g.videoURL(f), nil
	}
	return g.imageURL(f), nil
}
