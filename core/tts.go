package core

// SynthesizeOptions carries the voice selection for one synthesis call.
type SynthesizeOptions struct {
	Language Language
	Accent   string // Regional variant, e.g. a Google top-level domain ("co.in").
}

// SynthesisResult is encoded audio ready to be written to disk.
type SynthesisResult struct {
	Audio  []byte
	Format string // File extension without the dot: "mp3" or "wav".
}
