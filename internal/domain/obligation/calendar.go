package obligation

import "time"

// NormalizeDate truncates a timestamp to its calendar date at UTC midnight
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonthsClamped adds calendar months to a date. When the day of month
// does not exist in the target month it is clamped to the month's last day,
// so Jan 31 + 1 month is Feb 28 (or 29).
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := NormalizeDate(t).Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := daysInMonth(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
