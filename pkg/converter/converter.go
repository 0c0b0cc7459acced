package converter

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/mei"
)

// Format represents a file format
type Format string

const (
	FormatMEI     Format = "mei"
	FormatJSON    Format = "json"
	FormatMIDI    Format = "midi"
	FormatUnknown Format = "unknown"
)

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mei", ".xml":
		return FormatMEI
	case ".json":
		return FormatJSON
	case ".mid", ".midi":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) >= 4 && string(data[:4]) == "MThd" {
		return FormatMIDI
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	switch trimmed[0] {
	case '<':
		return FormatMEI
	case '{', '[':
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// ConvertFile converts an MEI file and writes the result through the configured sink
func (c *Converter) ConvertFile(inputPath, outputPath string) error {
	if c.sink == nil {
		return errors.New("no output sink configured")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	inputFormat := DetectFormat(inputPath)
	if inputFormat == FormatUnknown {
		inputFormat = DetectFormatFromContent(data)
	}
	if inputFormat != FormatMEI {
		return fmt.Errorf("unsupported input format: %s", inputFormat)
	}

	res, err := c.ConvertBytes(data)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	var buf bytes.Buffer
	if err := c.sink.Write(&buf, res); err != nil {
		return fmt.Errorf("failed to render %s output: %w", c.sink.Name(), err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	return nil
}

// ConvertBytes parses MEI data and converts it
func (c *Converter) ConvertBytes(data []byte) (*Result, error) {
	doc, err := mei.Parse(data)
	if err != nil {
		return nil, err
	}
	return c.Convert(doc), nil
}

// Convert turns every music body of doc into Movements and Performances. Recoverable
// anomalies are logged and never abort the conversion.
func (c *Converter) Convert(doc *mei.Document) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	ppq := c.opts.PPQ
	if ppq <= 0 {
		ppq = DefaultOptions().PPQ
	}
	res := &Result{PPQ: ppq}
	if doc == nil || doc.IsEmpty() {
		c.logger.Warn("document has no music to convert")
		return res
	}

	if minimal := MinimalPPQ(doc); minimal > ppq {
		c.logger.Info("raising ticks per quarter", "requested", ppq, "ppq", minimal)
		ppq = minimal
		res.PPQ = ppq
	}

	work := doc
	if c.opts.NonDestructive {
		work = doc.Copy()
	}
	if c.opts.AddIDs {
		if n := mei.AddIDs(work.Root()); n > 0 {
			c.logger.Debug("added ids", "count", n)
		}
	}

	for _, t := range mei.ResolveTieElements(work.Root()) {
		logging.Diagnostic(c.logger, "tie could not be resolved", t)
	}
	res.Unresolved = mei.ResolveCopyOfs(work.Root())
	for _, u := range res.Unresolved {
		logging.Diagnostic(c.logger, "reference could not be resolved", u)
	}
	for _, body := range work.Bodies() {
		if n := mei.ReorderByStartID(body); n > 0 {
			c.logger.Debug("moved control events in front of their start", "count", n)
		}
	}
	if !c.opts.IgnoreExpansions {
		work.SetRoot(mei.ResolveExpansions(work.Root()))
	}

	s := newSession(c.opts, ppq, c.logger, res)
	for _, body := range work.Bodies() {
		s.convert(body)
	}

	return res
}

// MinimalPPQ returns the smallest ticks per quarter that gives the shortest notated
// duration of doc an integer tick count
func MinimalPPQ(doc *mei.Document) int {
	shortest := 4.0
	for _, body := range doc.Bodies() {
		for _, e := range mei.Descendants(body) {
			dur, ok := mei.Attr(e, "dur")
			if !ok {
				continue
			}
			d := durationDecimal(dur)
			if d <= 0 {
				continue
			}
			if dots, err := parseInt(mei.AttrOr(e, "dots", "0")); err == nil {
				for i := 0; i < dots; i++ {
					d /= 2
				}
			}
			if d < shortest {
				shortest = d
			}
		}
	}

	result := 0.25 / shortest
	if result < 1 {
		return 1
	}
	return int(math.Ceil(result))
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"mei -> json",
		"mei -> midi",
	}
}
