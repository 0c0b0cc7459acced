// Package api provides the REST API server for mei2perf
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/james-see/mei2perf/internal/config"
	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/converter"
	"github.com/james-see/mei2perf/pkg/converter/sinks"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title mei2perf API
// @version 1.0
// @description API for converting MEI notation into Movement/Performance JSON and MIDI
// @host localhost:8080
// @BasePath /api/v1

// maxUploadSize bounds the MEI documents the API accepts
const maxUploadSize = 32 << 20

// Server holds the dependencies of the HTTP handlers
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	cache  *resultCache
}

// NewServer creates a server; a nil logger uses the package default
func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		cache:  newResultCache(cfg.CacheSize),
	}
}

// Router builds the gin engine with every route and middleware
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(RecoverWithSentry())
	r.Use(SentryMiddleware())
	r.Use(RequestTracking())
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/formats", listFormats)
		v1.POST("/convert/mei2json", s.handleMEIToJSON)
		v1.POST("/convert/mei2midi", s.handleMEIToMIDI)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the configured port
func StartServer(cfg *config.Config) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewServer(cfg, nil).Router().Run(fmt.Sprintf(":%d", cfg.Port))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-Cache")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "mei2perf",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the input and output formats and the conversion paths
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{string(converter.FormatMEI), string(converter.FormatJSON), string(converter.FormatMIDI)},
		"conversions": converter.GetSupportedConversions(),
	})
}

// handleMEIToJSON godoc
// @Summary Convert MEI to Movement/Performance JSON
// @Description Upload an MEI file and receive every movement and performance as JSON
// @Tags convert
// @Accept multipart/form-data
// @Produce application/json
// @Param file formData file true "MEI file to convert"
// @Param ppq query int false "Ticks per quarter (default: 720)"
// @Param channel10 query bool false "Allow parts on MIDI channel 10"
// @Param ignore_expansions query bool false "Convert the tree as encoded, ignoring expansions"
// @Param add_ids query bool false "Mint ids on notes, rests and chords lacking one"
// @Param expand_repeats query bool false "Play repeats and endings through"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/mei2json [post]
func (s *Server) handleMEIToJSON(c *gin.Context) {
	s.handleConversion(c, converter.FormatJSON)
}

// handleMEIToMIDI godoc
// @Summary Convert MEI to MIDI
// @Description Upload an MEI file and receive one movement as a Standard MIDI File
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "MEI file to convert"
// @Param ppq query int false "Ticks per quarter (default: 720)"
// @Param channel10 query bool false "Allow parts on MIDI channel 10"
// @Param ignore_expansions query bool false "Convert the tree as encoded, ignoring expansions"
// @Param add_ids query bool false "Mint ids on notes, rests and chords lacking one"
// @Param expand_repeats query bool false "Play repeats and endings through"
// @Param movement query int false "Index of the movement to render (default: 0)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/mei2midi [post]
func (s *Server) handleMEIToMIDI(c *gin.Context) {
	s.handleConversion(c, converter.FormatMIDI)
}

// request is a parsed conversion request
type request struct {
	opts     converter.Options
	movement int
}

// key identifies the parameters that influence the output
func (r request) key(format converter.Format) string {
	o := r.opts
	return fmt.Sprintf("%s|ppq=%d|ch10=%t|noexp=%t|ids=%t|rep=%t|mv=%d",
		format, o.PPQ, !o.AvoidPercussionChannel, o.IgnoreExpansions, o.AddIDs, o.ExpandRepeats, r.movement)
}

func (s *Server) parseRequest(c *gin.Context) (request, error) {
	req := request{opts: converter.DefaultOptions()}
	if s.cfg.PPQ > 0 {
		req.opts.PPQ = s.cfg.PPQ
	}

	if v := c.Query("ppq"); v != "" {
		ppq, err := strconv.Atoi(v)
		if err != nil || ppq <= 0 {
			return req, fmt.Errorf("invalid ppq: %q", v)
		}
		req.opts.PPQ = ppq
	}
	if v := c.Query("movement"); v != "" {
		movement, err := strconv.Atoi(v)
		if err != nil || movement < 0 {
			return req, fmt.Errorf("invalid movement: %q", v)
		}
		req.movement = movement
	}

	flags := []struct {
		name   string
		target *bool
		invert bool
	}{
		{"channel10", &req.opts.AvoidPercussionChannel, true},
		{"ignore_expansions", &req.opts.IgnoreExpansions, false},
		{"add_ids", &req.opts.AddIDs, false},
		{"expand_repeats", &req.opts.ExpandRepeats, false},
	}
	for _, f := range flags {
		v := c.Query(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid %s: %q", f.name, v)
		}
		*f.target = b != f.invert
	}
	return req, nil
}

func (s *Server) handleConversion(c *gin.Context, toFormat converter.Format) {
	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	// Read file content
	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if len(data) > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}
	if converter.DetectFormatFromContent(data) != converter.FormatMEI {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file is not MEI"})
		return
	}

	req, err := s.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sink, err := sinks.ForFormat(toFormat)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported conversion"})
		return
	}
	if toFormat == converter.FormatMIDI {
		sink = sinks.NewMIDI(req.movement)
	}

	key := cacheKey(data, req.key(toFormat))
	result, hit := s.cache.get(key)
	if !hit {
		result, err = s.render(data, req, sink)
		if err != nil {
			var reqErr *requestError
			if errors.As(err, &reqErr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		s.cache.put(key, result)
	}

	// Generate output filename
	outputName := strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	if outputName == "" {
		outputName = "converted"
	}
	outputName += sink.Extension()

	contentType := "application/json"
	if toFormat == converter.FormatMIDI {
		contentType = "audio/midi"
	}

	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Data(http.StatusOK, contentType, result)
}

// requestError is a conversion failure caused by the request rather than the server
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

// render converts MEI data and writes the result through sink
func (s *Server) render(data []byte, req request, sink converter.Sink) ([]byte, error) {
	res, err := converter.New(req.opts, s.logger).ConvertBytes(data)
	if err != nil {
		return nil, &requestError{msg: err.Error()}
	}
	if len(res.Movements) == 0 {
		return nil, &requestError{msg: "document contains no music"}
	}
	if req.movement >= len(res.Movements) {
		return nil, &requestError{msg: fmt.Sprintf("movement %d out of range: document has %d", req.movement, len(res.Movements))}
	}

	var buf bytes.Buffer
	if err := sink.Write(&buf, res); err != nil {
		return nil, fmt.Errorf("failed to render %s output: %w", sink.Name(), err)
	}
	return buf.Bytes(), nil
}
