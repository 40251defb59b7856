package attendance

import "time"

// LateHour is the local hour from which a self check-in counts as late.
const LateHour = 10

// EvaluateCheckIn decides the record a self check-in at now produces.
// existing is the record already stored for today in loc, if any; a second
// check-in is rejected with an *AlreadyCheckedInError carrying it.
func EvaluateCheckIn(existing *Record, now time.Time, loc *time.Location, comment string) (Record, error) {
	if existing != nil {
		return Record{}, &AlreadyCheckedInError{Existing: *existing}
	}
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	status := StatusPresent
	if local.Hour() >= LateHour {
		status = StatusLate
	}

	return Record{
		Date:      local.Format("2006-01-02"),
		Status:    status,
		Timestamp: now,
		Comment:   comment,
		MarkedBy:  MarkedBySelf,
	}, nil
}
