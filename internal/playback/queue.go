package playback

import "github.com/desertthunder/melodify/internal/models"

// nextIndex picks the entry after current in a queue of length n. In shuffle mode the pick is
// uniform, stepping forward once if it lands on current. Sequential playback wraps only when
// loop is set; ok is false when playback should stop instead.
func nextIndex(current, n int, shuffle, loop bool, intn func(int) int) (idx int, ok bool) {
	if n == 0 {
		return -1, false
	}
	if shuffle {
		idx = intn(n)
		if idx == current && n > 1 {
			idx = (idx + 1) % n
		}
		return idx, true
	}

	idx = current + 1
	if idx >= n {
		if !loop {
			return -1, false
		}
		idx = 0
	}
	return idx, true
}

// previousIndex picks the entry before current. Shuffle steps backward off a repeat; sequential
// playback always wraps to the end.
func previousIndex(current, n int, shuffle bool, intn func(int) int) int {
	if n == 0 {
		return -1
	}
	if shuffle {
		idx := intn(n)
		if idx == current && n > 1 {
			idx = (idx - 1 + n) % n
		}
		return idx
	}

	idx := current - 1
	if idx < 0 || idx >= n {
		idx = n - 1
	}
	return idx
}

func indexOf(queue []models.Track, id string) int {
	for i, t := range queue {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
