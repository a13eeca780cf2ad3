package tasks

import (
	"fmt"
	"path/filepath"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Discover Phase = iota
	Extract
	Save
	Remove
	Watch
)

func (p Phase) String() string {
	switch p {
	case Discover:
		return "discover"
	case Extract:
		return "extract"
	case Save:
		return "save"
	case Remove:
		return "remove"
	case Watch:
		return "watch"
	default:
		return ""
	}
}

func discoverUpdate(root string, found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Discover,
		Step:    found,
		Total:   found,
		Message: fmt.Sprintf("Found %d audio files in %s", found, root),
	}
}

func extractUpdate(step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Extract,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, filepath.Base(path)),
	}
}

func savedUpdate(step, total int, r FileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Save,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s - %s", step, total, r.Track.Artist, r.Track.Title),
		Data:    r.Track,
	}
}

func failedUpdate(step, total int, r FileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Save,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, filepath.Base(r.Path), r.Err),
	}
}

func removedUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Remove,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removed %s", filepath.Base(path)),
	}
}

func watchingUpdate(dirs int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Watch,
		Step:    dirs,
		Total:   dirs,
		Message: fmt.Sprintf("Watching %d directories for changes...", dirs),
	}
}
