package pipeline

import "fmt"

// State is the processing stage of one chunk.
type State int

const (
	Received State = iota
	Transcribing
	Translating
	Analyzing
	Merging
	Done
)

var stateNames = [...]string{
	Received:     "received",
	Transcribing: "transcribing",
	Translating:  "translating",
	Analyzing:    "analyzing",
	Merging:      "merging",
	Done:         "done",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}
