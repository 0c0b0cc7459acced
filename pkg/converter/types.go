package converter

import (
	"io"
	"log/slog"
	"sync"

	"github.com/james-see/mei2perf/internal/config"
	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/mpm"
	"github.com/james-see/mei2perf/pkg/msm"
)

// Options configures a conversion
type Options struct {
	// PPQ is the requested ticks per quarter; it is raised when the shortest note needs more
	PPQ int
	// AvoidPercussionChannel skips MIDI channel 10 when assigning part channels
	AvoidPercussionChannel bool
	// IgnoreExpansions converts the tree as encoded instead of following expansion plists
	IgnoreExpansions bool
	// Cleanup strips bookkeeping from the output models
	Cleanup bool
	// NonDestructive converts a copy and leaves the caller's document untouched
	NonDestructive bool
	// AddIDs mints ids on addressable elements before converting
	AddIDs bool
	// ExpandRepeats plays every movement through its repeats and endings
	ExpandRepeats bool
}

// DefaultOptions returns the options used by the CLI and API unless overridden
func DefaultOptions() Options {
	return Options{
		PPQ:                    config.DefaultPPQ,
		AvoidPercussionChannel: true,
		Cleanup:                true,
		NonDestructive:         true,
	}
}

// Result is the output of one conversion
type Result struct {
	Movements    []*msm.Movement    `json:"movements"`
	Performances []*mpm.Performance `json:"performances"`
	Unresolved   []string           `json:"unresolved,omitempty"`
	PPQ          int                `json:"ppq"`
}

// Sink defines the interface for output formats
type Sink interface {
	// Name returns the sink name
	Name() string
	// Extension returns the file extension the sink writes, including the dot
	Extension() string
	// Write serializes a conversion result
	Write(w io.Writer, res *Result) error
}

// Converter handles MEI conversion
type Converter struct {
	mu     sync.Mutex
	opts   Options
	logger *slog.Logger
	sink   Sink
}

// New creates a new converter; a nil logger uses the package default
func New(opts Options, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Converter{opts: opts, logger: logger}
}

// Options returns the conversion options
func (c *Converter) Options() Options {
	return c.opts
}

// GetSink returns the current output sink
func (c *Converter) GetSink() Sink {
	return c.sink
}

// SetSink sets the output sink
func (c *Converter) SetSink(s Sink) {
	c.sink = s
}
