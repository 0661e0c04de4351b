package quotations

import "time"

// ApplyStatus moves q to target and returns the previous status. Any known
// status may follow any other. Expiring a quotation whose validity is still
// in the future clamps ValidUntil to now.
func ApplyStatus(q *Quotation, target Status, now time.Time) Status {
	from := q.Status
	q.Status = target
	if target == StatusExpired && q.ValidUntil.After(now) {
		q.ValidUntil = now
	}
	return from
}
