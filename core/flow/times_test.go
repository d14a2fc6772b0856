package flow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeMenuGroupsSlotsIntoDayBands(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.Local)
	slots := []string{"09:00", "09:30", "10:00", "10:30", "12:00", "14:30", "17:00", "18:30"}

	resp := engine.timeMenu(date, slots)

	var headers []string
	var perBand = map[string][]string{}
	current := ""
	for _, row := range resp.Keyboard {
		for _, btn := range row {
			switch {
			case btn.IsHeader():
				headers = append(headers, btn.Label)
				current = btn.Label
			case strings.HasPrefix(btn.Action, "pick_time_"):
				perBand[current] = append(perBand[current], strings.TrimPrefix(btn.Action, "pick_time_"))
			}
		}
	}

	require.Equal(t, []string{"🌅 Morning", "☀️ Afternoon", "🌇 Evening"}, headers)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, perBand["🌅 Morning"])
	assert.Equal(t, []string{"12:00", "14:30"}, perBand["☀️ Afternoon"])
	assert.Equal(t, []string{"17:00", "18:30"}, perBand["🌇 Evening"])
	assert.True(t, hasButton(resp, CodeBackToDates))
}

func TestTimeMenuSkipsEmptyBands(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	resp := engine.timeMenu(time.Date(2026, 9, 10, 0, 0, 0, 0, time.Local), []string{"18:00"})

	for _, row := range resp.Keyboard {
		for _, btn := range row {
			if btn.IsHeader() {
				assert.Equal(t, "🌇 Evening", btn.Label, "only the populated band gets a header")
			}
		}
	}
}

func TestTimeMenuRowsHoldAtMostThreeSlots(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	slots := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00"}
	resp := engine.timeMenu(time.Date(2026, 9, 10, 0, 0, 0, 0, time.Local), slots)

	for _, row := range resp.Keyboard {
		var slotBtns int
		for _, btn := range row {
			if strings.HasPrefix(btn.Action, "pick_time_") {
				slotBtns++
			}
		}
		assert.LessOrEqual(t, slotBtns, 3)
	}
}

func TestHeaderButtonsAreInert(t *testing.T) {
	h := Header("🌅 Morning")
	assert.True(t, h.IsHeader())
	assert.Equal(t, CodeNoOp, h.Action)
	assert.Equal(t, KindNoOp, ParseAction(h.Action).Kind)
}
