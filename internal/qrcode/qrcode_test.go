package qrcode

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Encode(t *testing.T) {
	enc := NewEncoder(0)

	uri, err := enc.Encode("https://harekrishnamedical.com/invoice/HKM-INV-2026-1016-001")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())
}

func TestEncoder_EmptyContent(t *testing.T) {
	_, err := NewEncoder(128).Encode("")
	assert.Error(t, err)
}

func TestEncoder_ContentTooLong(t *testing.T) {
	_, err := NewEncoder(128).Encode(strings.Repeat("x", 5000))
	assert.Error(t, err)
}
