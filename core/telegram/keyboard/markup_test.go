package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/bookingbot/core/flow"
)

func TestFromResponseNilWithoutKeyboard(t *testing.T) {
	assert.Nil(t, FromResponse(flow.Response{Text: "plain"}))
}

func TestFromResponseBuildsInlineRows(t *testing.T) {
	resp := flow.Response{
		Keyboard: [][]flow.Button{
			{flow.Header("🌅 Morning")},
			{flow.Btn("09:00", "pick_time_09:00"), flow.Btn("09:30", "pick_time_09:30")},
			{flow.LinkBtn("📍 Directions", "https://maps.example/glow")},
		},
	}

	markup := FromResponse(resp)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 3)

	header := markup.InlineKeyboard[0][0]
	assert.Equal(t, "🌅 Morning", header.Text)
	assert.Equal(t, CallbackUnique, header.Unique)
	assert.Equal(t, flow.CodeNoOp, header.Data, "headers carry the inert action")

	row := markup.InlineKeyboard[1]
	require.Len(t, row, 2)
	assert.Equal(t, "09:00", row[0].Text)
	assert.Equal(t, CallbackUnique, row[0].Unique)
	assert.Equal(t, "pick_time_09:00", row[0].Data)

	link := markup.InlineKeyboard[2][0]
	assert.Equal(t, "https://maps.example/glow", link.URL)
	assert.Empty(t, link.Data)
}
