package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsCredentials(t *testing.T) {
	in := "post https://api.telegram.org/bot12345:AAbbCCdd-ee_ff/sendMessage failed"
	out := Sanitize(in)
	assert.NotContains(t, out, "12345:AAbbCCdd")
	assert.Contains(t, out, "<redacted>")

	in = "whatsapp: 401 from graph api, auth Bearer EAAGm0PX4ZCpsBA.stuff-here"
	out = Sanitize(in)
	assert.NotContains(t, out, "EAAGm0PX4ZCpsBA")
	assert.Contains(t, out, "<redacted>")

	assert.Equal(t, "plain message", Sanitize("plain message"))
	assert.Equal(t, "", Sanitize(""))
}

func TestSanitizeLimitTruncates(t *testing.T) {
	long := "x"
	for len(long) < 300 {
		long += long
	}
	out := SanitizeLimit(long, 64)
	assert.LessOrEqual(t, len(out), 64+len("..."))
}

func TestBuildRID(t *testing.T) {
	rid := BuildRID("tg", 42, "tg:100")
	assert.NotEmpty(t, rid)
	assert.Equal(t, rid, BuildRID("tg", 42, "tg:100"), "same inputs give a stable id")
	assert.NotEqual(t, rid, BuildRID("tg", 43, "tg:100"))
}

func TestRoundMS(t *testing.T) {
	assert.Equal(t, time.Duration(0), RoundMS(-time.Second))
	assert.Equal(t, 3*time.Millisecond, RoundMS(2600*time.Microsecond))
}

func TestSummarizeStrings(t *testing.T) {
	joined, truncated := SummarizeStrings([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b", joined)
	assert.True(t, truncated)

	joined, truncated = SummarizeStrings([]string{"a"}, 2)
	assert.Equal(t, "a", joined)
	assert.False(t, truncated)
}

func TestContextCarriesRequestMetadata(t *testing.T) {
	ctx := WithRID(Background(), "rid-1")
	ctx = WithIdentity(ctx, "tg:100")

	assert.Equal(t, "rid-1", RIDFrom(ctx))
	assert.Equal(t, "tg:100", IdentityFrom(ctx))
	assert.Equal(t, "", RIDFrom(Background()))
}
