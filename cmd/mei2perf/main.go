// Package main is the entry point for mei2perf CLI
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/mei2perf/internal/config"
	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/api"
	"github.com/james-see/mei2perf/pkg/converter"
	"github.com/james-see/mei2perf/pkg/converter/sinks"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/report"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	outputFile       string
	serverPort       int
	movementIndex    int
	ppq              int
	allowChannel10   bool
	ignoreExpansions bool
	addIDs           bool
	expandRepeats    bool
	logLevel         string
	logFormat        string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mei2perf",
	Short: "Convert MEI notation into performance data",
	Long: `mei2perf converts MEI music encodings into a symbolic Movement model
(notes, signatures, markers, repeats) and an expressive Performance model
(tempo, dynamics, articulation, ornaments), rendered as JSON or MIDI.

Examples:
  mei2perf convert score.mei -o score.mid
  mei2perf mei2json score.mei -o score.json
  mei2perf mei2midi score.mei --movement 1 --expand-repeats
  mei2perf ids score.mei -o score.ids.mei
  mei2perf info score.mei
  mei2perf serve --port 8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitLogger(logging.ParseLevel(logLevel), logging.ParseFormat(logFormat))
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert MEI to the format named by the output extension",
	Long:  `Converts an MEI file and picks JSON or MIDI output from the output file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var mei2jsonCmd = &cobra.Command{
	Use:   "mei2json <input.mei>",
	Short: "Convert MEI to Movement/Performance JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runMEIToJSON,
}

var mei2midiCmd = &cobra.Command{
	Use:   "mei2midi <input.mei>",
	Short: "Convert one MEI movement to a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMEIToMIDI,
}

var idsCmd = &cobra.Command{
	Use:   "ids <input.mei>",
	Short: "Add xml:ids to notes, rests and chords lacking one",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddIDs,
}

var infoCmd = &cobra.Command{
	Use:   "info <input.mei>",
	Short: "Print a summary of the converted movements",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().IntVar(&ppq, "ppq", config.DefaultPPQ, "Ticks per quarter (raised when short notes need more)")
	rootCmd.PersistentFlags().BoolVar(&allowChannel10, "channel10", false, "Allow parts on MIDI channel 10")
	rootCmd.PersistentFlags().BoolVar(&ignoreExpansions, "ignore-expansions", false, "Convert the tree as encoded, ignoring expansions")
	rootCmd.PersistentFlags().BoolVar(&addIDs, "add-ids", false, "Mint ids on elements lacking one before converting")
	rootCmd.PersistentFlags().BoolVar(&expandRepeats, "expand-repeats", false, "Play repeats and endings through")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	// Convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	convertCmd.Flags().IntVarP(&movementIndex, "movement", "m", 0, "Movement to render for MIDI output")
	_ = convertCmd.MarkFlagRequired("output")

	// mei2json command
	mei2jsonCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .json file path")

	// mei2midi command
	mei2midiCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")
	mei2midiCmd.Flags().IntVarP(&movementIndex, "movement", "m", 0, "Movement to render")

	// ids command
	idsCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mei file path")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	// Add commands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(mei2jsonCmd)
	rootCmd.AddCommand(mei2midiCmd)
	rootCmd.AddCommand(idsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(serveCmd)
}

func getOptions() converter.Options {
	opts := converter.DefaultOptions()
	opts.PPQ = ppq
	opts.AvoidPercussionChannel = !allowChannel10
	opts.IgnoreExpansions = ignoreExpansions
	opts.AddIDs = addIDs
	opts.ExpandRepeats = expandRepeats
	return opts
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func convertWith(input, output string, sink converter.Sink) error {
	conv := converter.New(getOptions(), logging.GetLogger())
	conv.SetSink(sink)

	fmt.Printf("Converting %s -> %s\n", input, output)
	if err := conv.ConvertFile(input, output); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	format := converter.DetectFormat(outputFile)
	sink, err := sinks.ForFormat(format)
	if err != nil {
		return err
	}
	if format == converter.FormatMIDI {
		sink = sinks.NewMIDI(movementIndex)
	}
	return convertWith(args[0], outputFile, sink)
}

func runMEIToJSON(cmd *cobra.Command, args []string) error {
	input := args[0]
	return convertWith(input, getOutputPath(input, ".json"), sinks.NewJSON())
}

func runMEIToMIDI(cmd *cobra.Command, args []string) error {
	input := args[0]
	return convertWith(input, getOutputPath(input, ".mid"), sinks.NewMIDI(movementIndex))
}

func runAddIDs(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".ids.mei")

	doc, err := mei.ParseFile(input)
	if err != nil {
		return err
	}

	added := mei.AddIDs(doc.Root())
	if err := os.WriteFile(output, []byte(doc.XML()), 0644); err != nil {
		return err
	}

	fmt.Printf("Added %d ids: %s -> %s\n", added, input, output)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	input := args[0]

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	res, err := converter.New(getOptions(), logging.GetLogger()).ConvertBytes(data)
	if err != nil {
		return err
	}

	fmt.Print(report.Render(filepath.Base(input), res))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cmd.Flags().Changed("port") {
		cfg.Port = serverPort
	}

	fmt.Printf("Starting API server on port %d...\n", cfg.Port)
	return api.StartServer(cfg)
}
