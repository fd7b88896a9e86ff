package exam

import "time"

// Deadline is the only authoritative end of a session: start + time limit.
func Deadline(start time.Time, t Template) time.Time {
	return start.Add(t.TimeLimit())
}

// Remaining is derived from the stored deadline on every call and never
// negative. Display clocks should re-read it instead of counting down locally.
func Remaining(now time.Time, s Session) time.Duration {
	d := s.Deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports whether remaining time has reached zero.
func Expired(now time.Time, s Session) bool {
	return !now.Before(s.Deadline)
}

// RemainingSeconds rounds down so a display never shows time the server
// will not honour.
func RemainingSeconds(now time.Time, s Session) int {
	return int(Remaining(now, s) / time.Second)
}
