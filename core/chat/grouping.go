package chat

import "time"

// DayLabelLayout formats the divider shown above each day of messages.
const DayLabelLayout = "Monday, January 2"

// GroupByDay partitions msgs (oldest first) into contiguous runs sharing the same
// calendar date in loc (time.Local when nil).
func GroupByDay(msgs []ChatMessage, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	groups := make([]DayGroup, 0)
	for _, msg := range msgs {
		ts := msg.CreatedAt.In(loc)
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
		if n := len(groups); n > 0 && groups[n-1].Date.Equal(day) {
			groups[n-1].Messages = append(groups[n-1].Messages, msg)
			continue
		}
		groups = append(groups, DayGroup{
			Date:     day,
			Label:    day.Format(DayLabelLayout),
			Messages: []ChatMessage{msg},
		})
	}
	return groups
}
