package gallery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDownloadType(t *testing.T) {
	dt, err := ParseDownloadType("Tag(s)")
	require.NoError(t, err)
	assert.Equal(t, TypeTag, dt)

	dt, err = ParseDownloadType("artist")
	require.NoError(t, err)
	assert.Equal(t, TypeArtist, dt)

	_, err = ParseDownloadType("artst")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDownloadType))
	assert.Contains(t, err.Error(), `did you mean "artist"`)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("Date added")
	require.NoError(t, err)
	assert.Equal(t, OrderRecent, o)

	o, err = ParseOrder("All time")
	require.NoError(t, err)
	assert.Equal(t, OrderAllTime, o)

	_, err = ParseOrder("sometimes")
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestParseSource(t *testing.T) {
	s, err := ParseSource("Hitomi")
	require.NoError(t, err)
	assert.Equal(t, SourceHitomi, s)
	assert.Equal(t, "nhentai", SourceNhentai.String())

	_, err = ParseSource("other")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "female:x", Tag{Name: "x", Sex: SexFemale}.String())
	assert.Equal(t, "x", Tag{Name: "x", Sex: SexNone}.String())
}
