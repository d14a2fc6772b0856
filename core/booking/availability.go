package booking

import "time"

// DaySlots generates every bookable slot start ("HH:MM") for one day.
// Slots step through the open hours at the configured slot size; for the
// current day, slots that have already started are dropped.
func DaySlots(hours Hours, date time.Time, now time.Time) []string {
	if dateOnly(date).Before(dateOnly(now)) {
		return []string{}
	}

	step := time.Duration(hours.SlotMinutes) * time.Minute
	open := time.Date(date.Year(), date.Month(), date.Day(), hours.OpenHour, 0, 0, 0, date.Location())
	close := time.Date(date.Year(), date.Month(), date.Day(), hours.CloseHour, 0, 0, 0, date.Location())

	slots := make([]string, 0, int(close.Sub(open)/step))
	for cur := open; cur.Add(step).Before(close) || cur.Add(step).Equal(close); cur = cur.Add(step) {
		if sameDay(date, now) && !cur.After(now) {
			continue
		}
		slots = append(slots, cur.Format(TimeFormat))
	}
	return slots
}

// FreeSlots filters the day's slot grid down to slots with remaining capacity,
// counting active appointments that truly overlap each slot interval.
// Bookings that merely touch a slot boundary do not count as overlap.
func FreeSlots(hours Hours, date time.Time, now time.Time, taken []Appointment, capacity int) []string {
	if capacity < 1 {
		capacity = 1
	}
	all := DaySlots(hours, date, now)
	free := make([]string, 0, len(all))
	for _, slot := range all {
		if CountOverlapping(slot, hours.SlotMinutes, taken) < capacity {
			free = append(free, slot)
		}
	}
	return free
}

// CountOverlapping counts active appointments whose interval strictly
// overlaps the slot starting at slotStart.
func CountOverlapping(slotStart string, slotMinutes int, appointments []Appointment) int {
	start, err := time.Parse(TimeFormat, slotStart)
	if err != nil {
		return 0
	}
	end := start.Add(time.Duration(slotMinutes) * time.Minute)

	count := 0
	for _, apt := range appointments {
		if !apt.Active() {
			continue
		}
		aptStart, err := time.Parse(TimeFormat, apt.Time)
		if err != nil {
			continue
		}
		aptEnd := aptStart.Add(time.Duration(apt.DurationMin) * time.Minute)
		if aptStart.Before(end) && aptEnd.After(start) {
			count++
		}
	}
	return count
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
