package hitomi

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/galleria/internal/gallery"
	"github.com/vmunix/galleria/internal/service"
	"github.com/vmunix/galleria/internal/transport"
)

const testGG = `'use strict';
gg = { m: function(g) {
var o = 0;
switch (g) {
case 1234:
case 2979:
o = 1; break;
}
return o;
},
s: function(h) { var m = /(..)(.)$/.exec(h); return parseInt(m[2]+m[1], 16).toString(10); },
b: '1700000000/'
};`

const testGallery = `var galleryinfo = {"id":"123","title":"Original | Translated","japanese_title":null,
"artists":[{"artist":"someone","url":"/artist/someone-all.html"}],"groups":null,
"type":"doujinshi","language":"english",
"parodys":[{"parody":"original"}],"characters":null,
"tags":[{"tag":"big breasts","female":"1","male":""},{"tag":"full color","female":"","male":""},{"tag":"shota","male":1}],
"date":"2023-04-05 06:07:08-05",
"files":[{"name":"01.jpg","hash":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa2b3","haswebp":1,"hasavif":0},
{"name":"02.png","hash":"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb000","haswebp":0,"hasavif":1}]}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nozomi(ids ...int32) []byte {
	b := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.BigEndian.PutUint32(b[i*4:], uint32(id))
	}
	return b
}

func setupService(t *testing.T, mux *http.ServeMux) *Service {
	t.Helper()
	mux.HandleFunc("/alive", func(http.ResponseWriter, *http.Request) {})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := transport.New(transport.Options{
		RequestCooldown: -1,
		RetryCooldown:   10 * time.Millisecond,
		ReplyTimeout:    time.Second,
		LivenessURL:     srv.URL + "/alive",
	}, testLogger())
	return New(client, testLogger(), WithBaseURL(srv.URL))
}

func TestNormalize(t *testing.T) {
	s := New(nil, testLogger())
	assert.Equal(t, "female:big breasts", s.Normalize(" F:Big Breasts ", gallery.TypeTag))
	assert.Equal(t, "male:shota", s.Normalize("m:shota", gallery.TypeTag))
	assert.Equal(t, "m:artist", s.Normalize("M:Artist", gallery.TypeArtist))
}

func TestNozomiURL(t *testing.T) {
	s := New(nil, testLogger())

	u, err := s.nozomiURL("female:big breasts", gallery.TypeTag, gallery.OrderRecent)
	require.NoError(t, err)
	assert.Equal(t, "https://ltn.hitomi.la/tag/female:big%20breasts-all.nozomi", u)

	u, err = s.nozomiURL("someone", gallery.TypeArtist, gallery.OrderWeek)
	require.NoError(t, err)
	assert.Equal(t, "https://ltn.hitomi.la/artist/popular/week/someone-all.nozomi", u)

	u, err = s.nozomiURL("touhou", gallery.TypeParody, gallery.OrderRecent)
	require.NoError(t, err)
	assert.Equal(t, "https://ltn.hitomi.la/series/touhou-all.nozomi", u)
}

func TestDecodeNozomi(t *testing.T) {
	assert.Equal(t, []int{1, 2000000, -1}, decodeNozomi(nozomi(1, 2000000, -1)))
	assert.Equal(t, []int{7}, decodeNozomi(append(nozomi(7), 0x01, 0x02)))
}

func TestResolveItem_Nozomi(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tag/female:x-all.nozomi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://hitomi.la/", r.Header.Get("Referer"))
		_, _ = w.Write(nozomi(30, 20, 10))
	})
	s := setupService(t, mux)

	it, err := s.ResolveItem(context.Background(), "female:x", gallery.TypeTag, gallery.OrderRecent)
	require.NoError(t, err)
	assert.Equal(t, 3, it.Len())

	var ids []int
	for {
		ref, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.Equal(t, gallery.SourceHitomi, ref.Source)
		ids = append(ids, ref.ID)
	}
	assert.Equal(t, []int{30, 20, 10}, ids)
}

func TestResolveItem_NotFoundIsInvalid(t *testing.T) {
	s := setupService(t, http.NewServeMux())

	_, err := s.ResolveItem(context.Background(), "nobody", gallery.TypeArtist, gallery.OrderRecent)
	assert.ErrorIs(t, err, service.ErrInvalidItem)
	assert.Equal(t, transport.NotFound, transport.CodeOf(err))
}

func TestResolveItem_GalleryID(t *testing.T) {
	s := New(nil, testLogger())

	it, err := s.ResolveItem(context.Background(), "123", gallery.TypeGalleryID, gallery.OrderRecent)
	require.NoError(t, err)
	ref, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 123, ref.ID)

	_, err = s.ResolveItem(context.Background(), "12x", gallery.TypeGalleryID, gallery.OrderRecent)
	assert.ErrorIs(t, err, service.ErrInvalidItem)
}

func TestFetchMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/galleries/123.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, testGallery)
	})
	s := setupService(t, mux)

	m, err := s.FetchMetadata(context.Background(), gallery.Ref{Source: gallery.SourceHitomi, ID: 123})
	require.NoError(t, err)

	assert.Equal(t, 123, m.ID)
	assert.Equal(t, "Original | Translated", m.Title)
	assert.Equal(t, "Original", m.OriginalTitle)
	assert.Equal(t, "Translated", m.TranslatedTitle)
	assert.Equal(t, []string{"someone"}, m.Artists)
	assert.Equal(t, []string{gallery.Placeholder}, m.Groups)
	assert.Equal(t, []string{"original"}, m.Series)
	assert.Equal(t, []string{gallery.Placeholder}, m.Characters)
	assert.Equal(t, []string{"female:big breasts", "full color", "male:shota"}, m.TagNames())
	assert.Equal(t, "doujinshi", m.Type)
	assert.Equal(t, "english", m.Language)
	assert.Equal(t, 2, m.Pages)
	assert.Equal(t, time.Date(2023, 4, 5, 11, 7, 8, 0, time.UTC), m.UploadDate.UTC())

	require.Len(t, m.Files, 2)
	assert.Equal(t, gallery.File{Name: "01", Ext: "jpg", Hash: m.Files[0].Hash, HasWebP: true}, m.Files[0])
	assert.True(t, m.Files[1].HasAVIF)
}

func TestFetchMetadata_Video(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/galleries/9.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `var galleryinfo = {"id":9,"title":"Clip","japanese_title":null,"artists":null,
"groups":null,"type":"anime","language":null,"characters":null,"tags":null,
"date":"2020-01-01 00:00:00-00","videofilename":"clip-episode-1.mp4","files":[]}`)
	})
	s := setupService(t, mux)

	m, err := s.FetchMetadata(context.Background(), gallery.Ref{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Pages)
	require.Len(t, m.Files, 1)
	assert.True(t, m.Files[0].IsVideo)
	assert.Equal(t, "clip-episode-1", m.Files[0].Name)
	assert.Equal(t, "mp4", m.Files[0].Ext)
}

func TestParseGalleryJS_Assumptions(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no object", `var galleryinfo = ;`, "galleryinfo"},
		{"missing title", `{"id":1,"japanese_title":null}`, "title"},
		{"other gallery", `{"id":"2","title":"t","japanese_title":null}`, "id"},
		{"missing artists key", `{"id":1,"title":"t","japanese_title":null,"groups":null}`, "artists"},
		{"null date", `{"id":1,"title":"t","japanese_title":null,"artists":null,"groups":null,"type":"manga","language":"english","characters":null,"tags":[],"date":null,"files":[]}`, "date"},
		{"file without extension", `{"id":1,"title":"t","japanese_title":null,"artists":null,"groups":null,"type":"manga","language":"english","characters":null,"tags":[],"date":"2020-01-01 00:00:00-00","files":[{"name":"noext","hash":"x"}]}`, "files"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseGalleryJS([]byte(tt.body), 1, "u")
			require.ErrorIs(t, err, gallery.ErrAssumption)
			var ae *gallery.AssumptionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.field, ae.Field)
		})
	}
}

func TestParseGG(t *testing.T) {
	g, err := parseGG(testGG)
	require.NoError(t, err)

	assert.Equal(t, "1700000000/", g.b)
	assert.Equal(t, 1, g.m(1234))
	assert.Equal(t, 1, g.m(2979))
	assert.Equal(t, 0, g.m(5))

	_, err = parseGG("gg = {}")
	assert.ErrorIs(t, err, gallery.ErrAssumption)
}

func TestBuildFileURL(t *testing.T) {
	var ggCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/gg.js", func(w http.ResponseWriter, r *http.Request) {
		ggCalls.Add(1)
		_, _ = io.WriteString(w, testGG)
	})
	s := setupService(t, mux)
	ctx := context.Background()

	// tail "2b3" reads as 0x32b = 811, not a listed case
	webp := &gallery.File{Name: "01", Ext: "jpg", HasWebP: true,
		Hash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa2b3"}
	u, err := s.BuildFileURL(ctx, nil, webp)
	require.NoError(t, err)
	assert.Equal(t, "https://aa.hitomi.la/webp/1700000000/811/"+webp.Hash+".webp", u)

	// tail "ba7" reads as 0x7ba = 1978
	img := &gallery.File{Name: "02", Ext: "png",
		Hash: "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccba7"}
	u, err = s.BuildFileURL(ctx, nil, img)
	require.NoError(t, err)
	assert.Equal(t, "https://ab.hitomi.la/images/1700000000/1978/"+img.Hash+".png", u)

	// tail "d24" reads as 0x4d2 = 1234, a listed case
	listed := &gallery.File{Name: "03", Ext: "jpg", HasWebP: true,
		Hash: "dddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd24"}
	u, err = s.BuildFileURL(ctx, nil, listed)
	require.NoError(t, err)
	assert.Equal(t, "https://ba.hitomi.la/webp/1700000000/1234/"+listed.Hash+".webp", u)

	video := &gallery.File{Name: "clip", Ext: "mp4", IsVideo: true}
	u, err = s.BuildFileURL(ctx, nil, video)
	require.NoError(t, err)
	assert.Equal(t, "https://a.hitomi.la/videos/clip.mp4", u)

	assert.Equal(t, int32(1), ggCalls.Load())

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, int32(2), ggCalls.Load())
}
