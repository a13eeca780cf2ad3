package playback

import "testing"

func TestNextIndex(t *testing.T) {
	fixed := func(v int) func(int) int { return func(int) int { return v } }

	tests := []struct {
		name    string
		current int
		n       int
		shuffle bool
		loop    bool
		intn    func(int) int
		want    int
		wantOK  bool
	}{
		{"sequential", 0, 3, false, false, nil, 1, true},
		{"wrap with loop", 2, 3, false, true, nil, 0, true},
		{"stop without loop", 2, 3, false, false, nil, -1, false},
		{"empty", -1, 0, false, true, nil, -1, false},
		{"shuffle pick", 0, 4, true, false, fixed(3), 3, true},
		{"shuffle collision", 3, 4, true, false, fixed(3), 0, true},
		{"shuffle single", 0, 1, true, false, fixed(0), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nextIndex(tt.current, tt.n, tt.shuffle, tt.loop, tt.intn)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("nextIndex() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPreviousIndex(t *testing.T) {
	fixed := func(v int) func(int) int { return func(int) int { return v } }

	tests := []struct {
		name    string
		current int
		n       int
		shuffle bool
		intn    func(int) int
		want    int
	}{
		{"sequential", 2, 3, false, nil, 1},
		{"wrap to end", 0, 3, false, nil, 2},
		{"unset index", -1, 3, false, nil, 2},
		{"empty", -1, 0, false, nil, -1},
		{"shuffle pick", 0, 4, true, fixed(2), 2},
		{"shuffle collision", 0, 4, true, fixed(0), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := previousIndex(tt.current, tt.n, tt.shuffle, tt.intn); got != tt.want {
				t.Errorf("previousIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRepeatMode(t *testing.T) {
	for _, s := range []string{"off", "all", "one"} {
		m, err := ParseRepeatMode(s)
		if err != nil {
			t.Fatalf("ParseRepeatMode(%q) error = %v", s, err)
		}
		if m.String() != s {
			t.Errorf("round trip %q -> %q", s, m.String())
		}
	}
	if _, err := ParseRepeatMode("sometimes"); err == nil {
		t.Error("expected error for unknown mode")
	}

	var m RepeatMode
	if err := m.UnmarshalText([]byte("ALL")); err != nil || m != RepeatAll {
		t.Errorf("UnmarshalText() = %v, %v", m, err)
	}
}

func TestPlayerStateStatus(t *testing.T) {
	track := makeTracks("a")[0]
	tests := []struct {
		name  string
		state PlayerState
		want  Status
	}{
		{"idle", PlayerState{}, StatusIdle},
		{"loading", PlayerState{CurrentTrack: &track, Loading: true}, StatusLoading},
		{"playing", PlayerState{CurrentTrack: &track, Playing: true}, StatusPlaying},
		{"paused", PlayerState{CurrentTrack: &track}, StatusPaused},
		{"error wins", PlayerState{CurrentTrack: &track, Loading: true, Error: "x"}, StatusError},
	}

	for _, tt := range tests {
		if got := tt.state.Status(); got != tt.want {
			t.Errorf("%s: Status() = %s, want %s", tt.name, got, tt.want)
		}
	}
}
