package gallery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Check(t *testing.T) {
	f := Filter{
		LanguagesInclude: []string{"english", "japanese"},
		TagsBlacklist:    []string{"female:bad"},
		TypesBlacklist:   []string{"anime"},
	}

	tests := []struct {
		name   string
		meta   Metadata
		reason Reason
		hit    bool
	}{
		{"passes", Metadata{Language: "English", Type: "manga", Tags: []Tag{{"good", SexNone}}}, "", false},
		{"language", Metadata{Language: "korean", Type: "manga"}, ReasonLanguage, true},
		{"tag with sex", Metadata{Language: "english", Tags: []Tag{{"bad", SexFemale}}}, ReasonTags, true},
		{"tag without sex is different", Metadata{Language: "english", Tags: []Tag{{"bad", SexNone}}}, "", false},
		{"type", Metadata{Language: "japanese", Type: "Anime"}, ReasonTypes, true},
		{"language wins over tags", Metadata{Language: "korean", Tags: []Tag{{"bad", SexFemale}}}, ReasonLanguage, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, hit := f.Check(&tt.meta)
			assert.Equal(t, tt.hit, hit)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestFilter_EmptyLanguagesAcceptsAll(t *testing.T) {
	_, hit := Filter{}.Check(&Metadata{Language: "anything"})
	assert.False(t, hit)
}

func TestReadList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.blacklist")
	require.NoError(t, os.WriteFile(path, []byte("a\n\n# comment\n  b  \n"), 0644))

	list, err := ReadList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)

	list, err = ReadList(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, list)
}
