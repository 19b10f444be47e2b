package chat

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// relativeDates is checked in order, so longer phrases come before the
// phrases they contain.
var relativeDates = []struct {
	phrases []string
	resolve func(today time.Time) time.Time
}{
	{[]string{"day after tomorrow", "lusa"}, func(d time.Time) time.Time { return d.AddDate(0, 0, 2) }},
	{[]string{"tomorrow", "besok"}, func(d time.Time) time.Time { return d.AddDate(0, 0, 1) }},
	{[]string{"next week", "minggu depan", "pekan depan"}, func(d time.Time) time.Time { return d.AddDate(0, 0, 7) }},
	{[]string{"this weekend", "weekend ini", "akhir pekan ini", "akhir minggu ini"}, weekend},
	{[]string{"today", "hari ini"}, func(d time.Time) time.Time { return d }},
}

var dateLayouts = []string{
	dateLayout,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

var schedulingWords = []string{
	"jadwal", "survei", "survey", "viewing", "visit", "kunjungan", "berkunjung", "lihat langsung",
	"schedule", "appointment", "janji", "besok", "lusa", "tomorrow", "next week", "minggu depan",
	"weekend", "akhir pekan", "hari ini", "today",
}

// weekend returns the coming Saturday, or today when it is already the weekend.
func weekend(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return d
	}
	return d.AddDate(0, 0, int(time.Saturday-d.Weekday()))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func mentionsScheduling(message string) bool {
	lower := strings.ToLower(message)
	for _, w := range schedulingWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func relativeDate(text string, today time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	for _, r := range relativeDates {
		for _, p := range r.phrases {
			if strings.Contains(lower, p) {
				return r.resolve(today), true
			}
		}
	}
	return time.Time{}, false
}

// resolveViewingDate decides the viewing date. A relative phrase in the
// visitor's message wins over whatever the model supplied, then a relative
// phrase in the supplied value. An unparseable or past date becomes tomorrow.
func resolveViewingDate(message, supplied string, now time.Time) time.Time {
	today := startOfDay(now)
	if d, ok := relativeDate(message, today); ok {
		return d
	}
	if d, ok := relativeDate(supplied, today); ok {
		return d
	}
	supplied = strings.TrimSpace(supplied)
	for _, layout := range dateLayouts {
		d, err := time.ParseInLocation(layout, supplied, now.Location())
		if err != nil {
			continue
		}
		if d.Before(today) {
			break
		}
		return d
	}
	return today.AddDate(0, 0, 1)
}
