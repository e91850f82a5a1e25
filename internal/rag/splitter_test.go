package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	t.Run("Rejects invalid parameters", func(t *testing.T) {
		for _, tc := range []struct{ size, overlap int }{{0, 0}, {10, -1}, {10, 10}, {10, 20}} {
			_, err := SplitText("some text", tc.size, tc.overlap)
			assert.ErrorIs(t, err, ErrInvalidChunking, "size=%d overlap=%d", tc.size, tc.overlap)
		}
	})

	t.Run("Empty text yields no chunk", func(t *testing.T) {
		chunks, err := SplitText(" \n\t ", 10, 2)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Short text is a single normalized chunk", func(t *testing.T) {
		chunks, err := SplitText("hello \n\n  world", 100, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"hello world"}, chunks)
	})

	t.Run("Windows overlap", func(t *testing.T) {
		chunks, err := SplitText("abcdefghijklmnopqrst", 8, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"abcdefgh", "fghijklm", "klmnopqr", "pqrst"}, chunks)
	})

	t.Run("Last window ends exactly at the text end", func(t *testing.T) {
		chunks, err := SplitText("abcdefghij", 6, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"abcdef", "efghij"}, chunks)
	})

	t.Run("Multi-byte characters are not split", func(t *testing.T) {
		text := strings.Repeat("é", 25)
		chunks, err := SplitText(text, 10, 0)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, strings.Repeat("é", 10), chunks[0])
		assert.Equal(t, strings.Repeat("é", 5), chunks[2])
	})
}
