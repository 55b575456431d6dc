package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateText(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "коротко", truncateText("коротко", 200))
	})

	t.Run("exact limit unchanged", func(t *testing.T) {
		s := strings.Repeat("ж", 200)
		assert.Equal(t, s, truncateText(s, 200))
	})

	t.Run("cyrillic cut lands on a rune boundary", func(t *testing.T) {
		long := strings.Repeat("описание ", 40)
		got := truncateText(long, 200)

		assert.True(t, utf8.ValidString(got))
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.Equal(t, 203, utf8.RuneCountInString(got))
		assert.Equal(t, string([]rune(long)[:200]), strings.TrimSuffix(got, "..."))
	})
}
