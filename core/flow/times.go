package flow

import (
	"strconv"
	"strings"
	"time"
)

const slotsPerRow = 3

type timeBand struct {
	header string
	from   int
	to     int
}

var timeBands = []timeBand{
	{header: "🌅 Morning", from: 0, to: 12},
	{header: "☀️ Afternoon", from: 12, to: 17},
	{header: "🌇 Evening", from: 17, to: 24},
}

// timeMenu renders TimeSelection: the free slots of a day grouped under
// morning, afternoon and evening headers. Header rows are inert.
func (e *Engine) timeMenu(date time.Time, slots []string) Response {
	var kb [][]Button
	for _, band := range timeBands {
		var bandSlots []string
		for _, slot := range slots {
			if h := slotHour(slot); h >= band.from && h < band.to {
				bandSlots = append(bandSlots, slot)
			}
		}
		if len(bandSlots) == 0 {
			continue
		}
		kb = append(kb, Row(Header(band.header)))
		var row []Button
		for _, slot := range bandSlots {
			row = append(row, Btn(slot, "pick_time_"+slot))
			if len(row) == slotsPerRow {
				kb = append(kb, row)
				row = nil
			}
		}
		if len(row) > 0 {
			kb = append(kb, row)
		}
	}
	kb = append(kb, Row(Btn("⬅️ Back to dates", CodeBackToDates)))

	return Response{
		Text:         "🕐 Pick a time for " + humanDate(date, dateOnly(e.now())) + ":",
		Keyboard:     kb,
		EditPrevious: true,
	}
}

func slotHour(slot string) int {
	h, _, ok := strings.Cut(slot, ":")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}
