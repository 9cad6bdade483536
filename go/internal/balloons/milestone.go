package balloons

import "fmt"

// crossed reports whether the running total passed a multiple of interval
// while moving from prev to cur.
func crossed(prev, cur, interval int) bool {
	if interval <= 0 || cur <= prev {
		return false
	}
	return cur/interval > prev/interval
}

// checkMilestone classifies the move from prev to cur. The enhanced kind
// takes precedence; at most one milestone is returned per crossing.
func checkMilestone(prev, cur, interval, bigInterval int) (Milestone, bool) {
	switch {
	case crossed(prev, cur, bigInterval):
		return Milestone{Total: cur, Enhanced: true, Message: fmt.Sprintf("%d Balloons Popped! Fireworks!", cur)}, true
	case crossed(prev, cur, interval):
		return Milestone{Total: cur, Message: fmt.Sprintf("%d Balloons Popped!", cur)}, true
	default:
		return Milestone{}, false
	}
}
