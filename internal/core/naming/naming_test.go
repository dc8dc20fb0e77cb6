package naming

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp!!", "acme-corp"},
		{"  --Hello__World--  ", "hello-world"},
		{"Café & Co.", "caf-co"},
		{"!!!", ""},
		{"ABC123", "abc123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestDeriveFormat(t *testing.T) {
	n := New("landing", 30, WithClock(fixedClock(1700000000000)))

	name := n.Derive("Acme Corp!!")
	assert.Equal(t, "landing-acme-corp-loyw3v28", name)
	assert.True(t, Valid(name), name)
}

func TestDeriveTwiceDiffers(t *testing.T) {
	// 时钟不前进时后缀依然递增
	n := New("", 0, WithClock(fixedClock(1700000000000)))

	a := n.Derive("Acme Corp!!")
	b := n.Derive("Acme Corp!!")
	assert.NotEqual(t, a, b)
	assert.True(t, Valid(a))
	assert.True(t, Valid(b))
}

func TestDeriveCollidingClocksAcrossNamers(t *testing.T) {
	a := New("landing", 30, WithClock(fixedClock(42))).Derive("Acme")
	b := New("landing", 30, WithClock(fixedClock(42))).Derive("Acme")
	assert.Equal(t, a, b, "different processes with the same clock collide; the provider uniqueness check rejects one")
}

func TestDeriveTruncatesAndFallsBack(t *testing.T) {
	n := New("landing", 30, WithClock(fixedClock(1)))

	long := n.Derive(strings.Repeat("abcdefghij ", 10))
	parts := strings.Split(long, "-")
	slug := strings.Join(parts[1:len(parts)-1], "-")
	assert.LessOrEqual(t, len(slug), 30)
	assert.False(t, strings.HasSuffix(slug, "-"))

	empty := n.Derive("!!!")
	assert.True(t, strings.HasPrefix(empty, "landing-site-"))
	assert.True(t, Valid(empty))
}

func TestDeriveLongPrefixKeepsBound(t *testing.T) {
	n := New(strings.Repeat("p", 90), 200, WithClock(fixedClock(1700000000000)))
	name := n.Derive(strings.Repeat("acme ", 40))
	require.True(t, Valid(name), name)
	assert.LessOrEqual(t, len(name), MaxRepoNameLength)
}

func TestProjectName(t *testing.T) {
	assert.Equal(t, "landing-acme-corp-lp1nrnb4", ProjectName("landing-acme-corp-lp1nrnb4"))
	assert.Equal(t, "landing-acme-corp-x", ProjectName("Landing_Acme.Corp-X"))

	long := "landing-" + strings.Repeat("a", 60) + "-lp1nrnb4"
	p := ProjectName(long)
	assert.LessOrEqual(t, len(p), MaxProjectNameLength)
	assert.True(t, strings.HasSuffix(p, "-lp1nrnb4"))
	assert.Equal(t, p, ProjectName(long), "deterministic")
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("landing-acme-1"))
	assert.False(t, Valid("-landing"))
	assert.False(t, Valid("landing-"))
	assert.False(t, Valid("Landing"))
	assert.False(t, Valid("a"))
	assert.False(t, Valid(strings.Repeat("a", MaxRepoNameLength+1)))
}
