package imagebind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPNG builds the smallest structurally valid PNG: header, an IHDR
// with zeroed fields, and IEND.
func minimalPNG() []byte {
	out := append([]byte(nil), pngHeader...)
	out = appendChunk(out, "IHDR", make([]byte, 13))
	out = appendChunk(out, "IEND", nil)
	return out
}

func TestEmbedExtractRoundTrip(t *testing.T) {
	archive := []byte("PK\x03\x04 pretend zip bytes")
	out, err := Embed(minimalPNG(), []File{{Name: "proj.zip", Data: archive}})
	require.NoError(t, err)
	assert.True(t, HasEmbedded(out))

	files, err := Extract(out)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "proj.zip", files[0].Name)
	assert.Equal(t, "archive", files[0].Type)
	assert.Equal(t, archive, files[0].Data)
}

func TestEmbedReplacesExistingBundle(t *testing.T) {
	first, err := Embed(minimalPNG(), []File{{Name: "a.zip", Data: []byte("one")}})
	require.NoError(t, err)
	second, err := Embed(first, []File{{Name: "b.zip", Data: []byte("two")}})
	require.NoError(t, err)

	files, err := Extract(second)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "b.zip", files[0].Name)
}

func TestListEmbedded(t *testing.T) {
	out, err := Embed(minimalPNG(), []File{
		{Name: "proj.zip", Data: []byte("12345")},
		{Name: "notes.json", Data: []byte("{}")},
	})
	require.NoError(t, err)

	infos, err := ListEmbedded(out)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 5, infos[0].Size)
	assert.Equal(t, "config", infos[1].Type)
}

func TestExtractWithoutBundle(t *testing.T) {
	_, err := Extract(minimalPNG())
	assert.ErrorIs(t, err, ErrNoBundle)
	assert.False(t, HasEmbedded(minimalPNG()))
}

func TestRejectsNonPNG(t *testing.T) {
	_, err := Embed([]byte("GIF89a not a png"), []File{{Name: "x.zip", Data: []byte("x")}})
	assert.Error(t, err)
	_, err = Extract([]byte{0x89, 'P'})
	assert.Error(t, err)
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, "archive", DetectType("bundle.ZIP"))
	assert.Equal(t, "image", DetectType("cover.png"))
	assert.Equal(t, "config", DetectType("projectd.yaml"))
	assert.Equal(t, "other", DetectType("README.md"))
}
