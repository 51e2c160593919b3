// Package api exposes the out-of-core factorization service over HTTP.
//
// Matrices travel as mxf containers in request and response bodies;
// everything else is JSON. Each factorization request becomes a job record
// that outlives the request, so clients can look failures up after the
// fact.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/ashlar/internal/version"
	"github.com/samcharles93/ashlar/pkg/mxf"
)

// MXFContentType is the media type for mxf container payloads.
const MXFContentType = "application/vnd.ashlar.mxf"

// HeaderJobID carries the job id of a factorize request, on success and
// on failure.
const HeaderJobID = "Ashlar-Job-Id"

// Server routes HTTP requests to the factorization service.
type Server struct {
	store   *JobStore
	service *FactorizationService
	metrics *apiMetrics
	limiter *rate.Limiter
	clock   func() time.Time

	spool   string
	maxBody int64
}

func NewServer(store *JobStore, service *FactorizationService) *Server {
	if store == nil {
		store = NewJobStore()
	}
	s := &Server{
		store:   store,
		service: service,
		metrics: newAPIMetrics(),
		limiter: rate.NewLimiter(rate.Inf, 0),
		clock:   time.Now,
		spool:   os.TempDir(),
	}
	s.metrics.setDevices(service.Devices())
	return s
}

// RateLimit bounds how often factorize requests are admitted.
func (s *Server) RateLimit(limit rate.Limit, burst int) {
	s.limiter = rate.NewLimiter(limit, burst)
}

// LimitBodyBytes caps factorize request bodies. Zero means no cap.
func (s *Server) LimitBodyBytes(n int64) {
	s.maxBody = n
}

// SpoolDir sets where request and response containers are staged.
func (s *Server) SpoolDir(dir string) {
	s.spool = dir
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", s.handleMetrics)

	// Factorization API
	e.GET("/v1/devices", s.handleDevices)
	e.POST("/v1/factorize", s.handleFactorize)
	e.GET("/v1/jobs", s.handleListJobs)
	e.GET("/v1/jobs/:id", s.handleGetJob)
	e.DELETE("/v1/jobs/:id", s.handleDeleteJob)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.String(),
		Backend: s.service.Backend(),
		Devices: len(s.service.Devices()),
	})
}

func (s *Server) handleMetrics(c *echo.Context) error {
	s.metrics.handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *Server) handleDevices(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, DeviceList{
		Object: "list",
		Data:   s.service.Devices(),
	})
}

func (s *Server) handleFactorize(c *echo.Context) error {
	if !s.limiter.Allow() {
		return writeError(c, http.StatusTooManyRequests, "rate_limit_error",
			"factorization rate limit exceeded", "", "rate_limited")
	}

	upper, err := parseBoolParam(c, "upper")
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	clean, err := parseBoolParam(c, "clean")
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	params := FactorizeParams{Upper: upper, Clean: clean}

	s.metrics.inFlight.Inc()
	defer s.metrics.inFlight.Dec()

	inPath, err := s.spoolBody(c)
	if inPath != "" {
		defer os.Remove(inPath)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.observe("rejected", 0)
			return writeError(c, http.StatusRequestEntityTooLarge, "invalid_request_error",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "", "body_too_large")
		}
		return writeError(c, http.StatusInternalServerError, "server_error",
			"spooling request body: "+err.Error(), "", "")
	}

	a, _, err := mxf.ReadMatrix(inPath)
	if err != nil {
		s.metrics.observe("rejected", 0)
		return writeBadRequest(c, "decoding matrix container: "+err.Error())
	}
	if a.Rows != a.Cols {
		s.metrics.observe("rejected", 0)
		return writeBadRequest(c, fmt.Sprintf("matrix must be square, got %d-by-%d", a.Rows, a.Cols))
	}

	started := s.clock()
	job := s.store.Create(a.Rows, len(s.service.Devices()), params.Upper, params.Clean, started)
	c.Response().Header().Set(HeaderJobID, job.ID)

	result, err := s.service.Factorize(c.Request().Context(), a, params)
	took := s.clock().Sub(started)
	if err != nil {
		status, cause := factorizationError(err)
		s.store.Fail(job.ID, cause, s.clock())
		s.metrics.observe(jobStatusFailed, took)
		return writeError(c, status, cause.Type, cause.Message, cause.Param, cause.Code)
	}
	s.store.Complete(job.ID, result.Blocks, result.BlockSize, took, s.clock())
	s.metrics.observe(jobStatusCompleted, took)

	outInfo := mxf.MatrixInfo{
		Triangle: factorTriangle(params),
		Creator:  "ashlar/" + version.Resolve().Version,
	}
	outPath, err := s.stageFactor(result, outInfo)
	if outPath != "" {
		defer os.Remove(outPath)
	}
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error",
			"encoding factor container: "+err.Error(), "", "")
	}
	return s.sendContainer(c, outPath)
}

func (s *Server) handleListJobs(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, JobList{
		Object: "list",
		Data:   s.store.List(),
	})
}

func (s *Server) handleGetJob(c *echo.Context) error {
	id := c.Param("id")
	job, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "job not found")
	}
	return writeJSON(c, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "job not found")
	}
	return writeJSON(c, http.StatusOK, DeletedJob{
		ID:      id,
		Object:  jobObject,
		Deleted: true,
	})
}

// spoolBody stages the request body in the spool directory and returns
// the staged path, which is non-empty whenever a file was created.
func (s *Server) spoolBody(c *echo.Context) (string, error) {
	body := io.Reader(c.Request().Body)
	if s.maxBody > 0 {
		body = http.MaxBytesReader(c.Response(), c.Request().Body, s.maxBody)
	}
	f, err := os.CreateTemp(s.spool, "ashlar-req-*.mxf")
	if err != nil {
		return "", err
	}
	path := f.Name()
	_, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr != nil {
		return path, copyErr
	}
	return path, closeErr
}

// stageFactor writes the factor container to the spool directory.
func (s *Server) stageFactor(result FactorizeResult, info mxf.MatrixInfo) (string, error) {
	f, err := os.CreateTemp(s.spool, "ashlar-fac-*.mxf")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return path, err
	}
	return path, mxf.WriteMatrix(path, result.Factor, info)
}

// sendContainer streams a staged container as the response body.
func (s *Server) sendContainer(c *echo.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error",
			"reading factor container: "+err.Error(), "", "")
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error",
			"reading factor container: "+err.Error(), "", "")
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, MXFContentType)
	res.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	res.WriteHeader(http.StatusOK)
	_, err = io.Copy(res, f)
	return err
}

// factorTriangle names the triangle the response container holds. With
// Clean unset both triangles carry data, the factor plus leftovers of the
// input, so the container is marked full.
func factorTriangle(p FactorizeParams) string {
	switch {
	case p.Upper && p.Clean:
		return mxf.TriangleUpper
	case p.Clean:
		return mxf.TriangleLower
	default:
		return mxf.TriangleFull
	}
}
