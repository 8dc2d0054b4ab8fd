package sources

import "time"

// Window is a half-open [Since, Until) range of the replication key
type Window struct {
	Since time.Time
	Until time.Time
}

// WindowPlanner splits [since, until) into windows no longer than span.
// The cursor always advances by exactly span, so window starts are
// since, since+span, since+2*span, ...
type WindowPlanner struct {
	cursor time.Time
	until  time.Time
	span   time.Duration
}

func NewWindowPlanner(since, until time.Time, span time.Duration) *WindowPlanner {
	return &WindowPlanner{cursor: since, until: until, span: span}
}

func (p *WindowPlanner) Next() (Window, bool) {
	if p.span <= 0 || !p.cursor.Before(p.until) {
		return Window{}, false
	}

	end := p.cursor.Add(p.span)
	if end.After(p.until) {
		end = p.until
	}

	w := Window{Since: p.cursor, Until: end}
	p.cursor = p.cursor.Add(p.span)
	return w, true
}

// PlanWindows returns every window of [since, until)
func PlanWindows(since, until time.Time, span time.Duration) []Window {
	var windows []Window
	planner := NewWindowPlanner(since, until, span)
	for w, ok := planner.Next(); ok; w, ok = planner.Next() {
		windows = append(windows, w)
	}
	return windows
}
