// Package server exposes channel inspection over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/chanpack/internal/logger"
	"github.com/samcharles93/chanpack/pkg/channel"
	"github.com/samcharles93/chanpack/pkg/payload"
	"github.com/samcharles93/chanpack/pkg/sigblock"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// DefaultMaxBody bounds uploaded packages.
const DefaultMaxBody = 512 << 20

// Config configures a Server.
type Config struct {
	// Root is the directory packages are served from by name.
	Root    string
	MaxBody int64
	Cache   *channel.Cache
	Logger  logger.Logger
}

// Server answers channel queries.
type Server struct {
	root    string
	maxBody int64
	cache   *channel.Cache
	log     logger.Logger
}

// New returns a Server. A nil cache gets a fresh one.
func New(cfg Config) *Server {
	s := &Server{
		root:    cfg.Root,
		maxBody: cfg.MaxBody,
		cache:   cfg.Cache,
		log:     cfg.Logger,
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBody
	}
	if s.cache == nil {
		s.cache = channel.NewCache()
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	return s
}

// Register mounts the routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/channel", s.handleReadUpload)
	e.GET("/v1/packages/:name", s.handleLayout)
	e.GET("/v1/packages/:name/channel", s.handleReadFile)
	e.DELETE("/v1/cache", s.handleResetCache)
	e.DELETE("/v1/cache/:name", s.handleInvalidate)
}

// ChannelResponse is the body of a successful channel read.
type ChannelResponse struct {
	Name     string            `json:"name,omitempty"`
	Source   channel.Source    `json:"source"`
	Entry    string            `json:"entry,omitempty"`
	Metadata map[string]string `json:"metadata"`
	Digest   channel.Digest    `json:"digest"`
	Size     int64             `json:"size"`
}

// ErrorBody wraps error responses.
type ErrorBody struct {
	Error APIError `json:"error"`
}

// APIError describes a failed request.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (s *Server) handleReadUpload(c *echo.Context) error {
	body := io.LimitReader(c.Request().Body, s.maxBody+1)
	data, err := io.ReadAll(body)
	if err != nil {
		return writeBadRequest(c, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(data)) > s.maxBody {
		return writeError(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("package exceeds %d bytes", s.maxBody))
	}

	r, err := channel.Inspect(data)
	if err != nil {
		return s.writeReadError(c, err)
	}
	return c.JSON(http.StatusOK, ChannelResponse{
		Source:   r.Source,
		Entry:    r.Entry,
		Metadata: r.Metadata.Map(),
		Digest:   channel.Sum(data),
		Size:     int64(len(data)),
	})
}

func (s *Server) handleReadFile(c *echo.Context) error {
	name := c.Param("name")
	path, ok := s.resolve(name)
	if !ok {
		return writeNotFound(c, "package not found")
	}
	e, err := s.cache.Get(path)
	if errors.Is(err, fs.ErrNotExist) {
		return writeNotFound(c, "package not found")
	}
	if err != nil {
		s.log.Error("read package", "name", name, "err", err)
		return writeError(c, http.StatusInternalServerError, "server_error", "package could not be read")
	}
	if !e.Found() {
		return s.writeReadError(c, e.Err)
	}
	return c.JSON(http.StatusOK, ChannelResponse{
		Name:     name,
		Source:   e.Result.Source,
		Entry:    e.Result.Entry,
		Metadata: e.Result.Metadata.Map(),
		Digest:   e.Digest,
		Size:     e.Size,
	})
}

func (s *Server) handleLayout(c *echo.Context) error {
	path, ok := s.resolve(c.Param("name"))
	if !ok {
		return writeNotFound(c, "package not found")
	}
	f, err := zipindex.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return writeNotFound(c, "package not found")
	case errors.Is(err, zipindex.ErrFormat):
		return writeError(c, http.StatusUnprocessableEntity, "malformed_package", err.Error())
	case err != nil:
		s.log.Error("open package", "path", path, "err", err)
		return writeError(c, http.StatusInternalServerError, "server_error", "package could not be read")
	}
	defer func() { _ = f.Close() }()

	l, err := channel.Analyze(f.Data)
	if err != nil {
		return s.writeReadError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (s *Server) handleResetCache(c *echo.Context) error {
	n := s.cache.Len()
	s.cache.Reset()
	return c.JSON(http.StatusOK, map[string]any{"dropped": n})
}

func (s *Server) handleInvalidate(c *echo.Context) error {
	path, ok := s.resolve(c.Param("name"))
	if !ok {
		return writeNotFound(c, "package not found")
	}
	s.cache.Invalidate(path)
	return c.JSON(http.StatusOK, map[string]any{"invalidated": c.Param("name")})
}

// resolve maps a package name to a path under the root.
func (s *Server) resolve(name string) (string, bool) {
	if s.root == "" || name == "" || !filepath.IsLocal(name) || filepath.Base(name) != name {
		return "", false
	}
	return filepath.Join(s.root, name), true
}

func (s *Server) writeReadError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, channel.ErrNoChannel):
		return writeNotFound(c, err.Error())
	case errors.Is(err, zipindex.ErrFormat):
		return writeError(c, http.StatusUnprocessableEntity, "malformed_package", err.Error())
	case errors.Is(err, sigblock.ErrBlockCorrupt):
		return writeError(c, http.StatusUnprocessableEntity, "corrupt_signing_block", err.Error())
	case errors.Is(err, payload.ErrPayloadFormat):
		return writeError(c, http.StatusUnprocessableEntity, "malformed_payload", err.Error())
	default:
		return writeError(c, http.StatusUnprocessableEntity, "unreadable_package", err.Error())
	}
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, ErrorBody{Error: APIError{Message: msg, Type: errType}})
}
