package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForName(t *testing.T) {
	tests := []struct {
		name string
		want Codec
	}{
		{"tile_001.fits", None},
		{"tile_001.fits.gz", Gzip},
		{"TILE.FITS.GZ", Gzip},
		{"tiles/a.fits.zst", Zstd},
		{"a.fits.lz4", LZ4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForName(tt.name))
		})
	}
}

func TestParse(t *testing.T) {
	c, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, None, c)

	c, err = Parse("GZIP")
	require.NoError(t, err)
	assert.Equal(t, Gzip, c)
	assert.Equal(t, ".gz", c.Extension())

	_, err = Parse("bzip2")
	require.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	data := bytes.Repeat([]byte("SIMPLE  =                    T"), 200)

	for _, c := range []Codec{None, Gzip, Zstd, LZ4} {
		t.Run(c.String(), func(t *testing.T) {
			enc, err := Encode(c, data)
			require.NoError(t, err)
			if c != None {
				assert.Less(t, len(enc), len(data))
			}

			dec, err := Decode(c, bytes.NewReader(enc))
			require.NoError(t, err)
			assert.Equal(t, data, dec)
		})
	}
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := Decode(Gzip, bytes.NewReader([]byte("not gzip")))
	require.Error(t, err)
}
