package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/piwi3910/arcflow/internal/cache"
	"github.com/piwi3910/arcflow/internal/engine"
	"github.com/piwi3910/arcflow/internal/export"
	"github.com/piwi3910/arcflow/internal/format"
	"github.com/piwi3910/arcflow/internal/model"
	"github.com/piwi3910/arcflow/internal/project"
)

const defaultRunsLimit = 50

// GraphResponse is returned by POST /api/v1/graphs.
type GraphResponse struct {
	RunID  string       `json:"run_id,omitempty"`
	Digest string       `json:"digest"`
	Cached bool         `json:"cached"`
	NV     int          `json:"nv"`
	NA     int          `json:"na"`
	Stats  engine.Stats `json:"stats"`
	AFG    string       `json:"afg"`
}

// SolutionRequest is the body of POST /api/v1/solutions. Flow maps arc
// indices to flow values.
type SolutionRequest struct {
	AFG  string          `json:"afg" binding:"required"`
	Flow map[int]float64 `json:"flow"`
}

// SolutionResponse is returned by POST /api/v1/solutions.
type SolutionResponse struct {
	RunID     string            `json:"run_id,omitempty"`
	Objective int               `json:"objective"`
	Bins      int               `json:"bins"`
	Patterns  [][]model.Pattern `json:"patterns"`
	Text      string            `json:"text"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok", "cache": "disabled", "history": "disabled"}
	if s.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.cache.Ping(ctx); err != nil {
			resp["cache"] = "unavailable"
		} else {
			resp["cache"] = "ok"
		}
	}
	if s.history != nil {
		resp["history"] = "ok"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateGraph(c *gin.Context) {
	log := s.log(c)

	kind, err := format.ParseKind(c.DefaultQuery("format", "vbp"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format", "details": err.Error()})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Failed to read body", "details": err.Error()})
		return
	}

	inst, err := format.ReadInstanceDefaults(bytes.NewReader(body), kind, s.defaults)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, model.ErrInvalidInstance) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": "Invalid instance", "details": err.Error()})
		return
	}

	digest, err := cache.Digest(inst)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to digest instance", "details": err.Error()})
		return
	}

	resp := GraphResponse{Digest: digest}
	g := s.lookupGraph(c.Request.Context(), digest, &inst)
	if g != nil {
		resp.Cached = true
	} else {
		g, err = engine.Build(inst, engine.WithLogger(log))
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to build graph", "details": err.Error()})
			return
		}
		s.metrics.BuildDuration.Observe(g.Stats.Elapsed.Seconds())
		s.metrics.DPStates.Set(float64(g.Stats.DPStates))
		if s.cache != nil {
			if err := s.cache.Put(c.Request.Context(), digest, inst, g); err != nil {
				log.Warn("failed to cache graph", "digest", digest, "error", err)
			}
		}
	}
	s.metrics.GraphVertices.Set(float64(g.NV))
	s.metrics.GraphArcs.Set(float64(g.NA()))

	var afg strings.Builder
	if err := format.WriteAFG(&afg, inst, g); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write graph", "details": err.Error()})
		return
	}
	resp.NV = g.NV
	resp.NA = g.NA()
	resp.Stats = g.Stats
	resp.AFG = afg.String()

	if s.history != nil {
		run, err := s.history.Record(c.Request.Context(), project.Run{
			Kind:      project.RunGraph,
			Digest:    digest,
			NV:        g.NV,
			NA:        g.NA(),
			DPStates:  g.Stats.DPStates,
			ElapsedMS: g.Stats.Elapsed.Milliseconds(),
		})
		if err != nil {
			log.Warn("failed to record run", "error", err)
		} else {
			resp.RunID = run.ID
		}
	}

	c.JSON(http.StatusOK, resp)
}

// lookupGraph returns the cached graph for digest, or nil on a miss. On a
// hit *inst is replaced by the cached instance so that item ids match the
// graph's labels.
func (s *Server) lookupGraph(ctx context.Context, digest string, inst **model.Instance) *engine.Graph {
	if s.cache == nil {
		return nil
	}
	cachedInst, g, ok, err := s.cache.Get(ctx, digest)
	switch {
	case err != nil:
		s.metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("graph cache lookup failed", "digest", digest, "error", err)
		return nil
	case !ok:
		s.metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil
	}
	s.metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	*inst = cachedInst
	return g
}

func (s *Server) handleEvictGraph(c *gin.Context) {
	if s.cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Graph cache is disabled"})
		return
	}
	digest := c.Param("digest")
	if len(digest) != 64 || strings.Trim(digest, "0123456789abcdef") != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid digest"})
		return
	}
	removed, err := s.cache.Delete(c.Request.Context(), digest)
	if err != nil {
		s.log(c).Warn("failed to evict graph", "digest", digest, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to evict graph", "details": err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Graph not cached"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateSolution(c *gin.Context) {
	log := s.log(c)

	outFormat := c.DefaultQuery("format", "json")
	switch outFormat {
	case "json", "pdf", "xlsx":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req SolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	inst, g, err := format.ReadAFG(strings.NewReader(req.AFG))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid graph", "details": err.Error()})
		return
	}

	sol, err := engine.Extract(inst, g, req.Flow)
	if err != nil {
		s.metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to extract solution", "details": err.Error()})
		return
	}
	s.metrics.ExtractionsTotal.WithLabelValues("ok").Inc()

	resp := SolutionResponse{
		Objective: sol.Objective(inst),
		Bins:      sol.TotalBins(),
		Patterns:  sol.Patterns,
	}

	if s.history != nil {
		digest, err := cache.Digest(inst)
		if err == nil {
			var run project.Run
			run, err = s.history.Record(c.Request.Context(), project.Run{
				Kind:      project.RunSolution,
				Digest:    digest,
				NV:        g.NV,
				NA:        g.NA(),
				Objective: resp.Objective,
				Bins:      resp.Bins,
			})
			resp.RunID = run.ID
		}
		if err != nil {
			log.Warn("failed to record run", "error", err)
		}
	}

	switch outFormat {
	case "json":
		var text strings.Builder
		if err := format.PrintSolution(&text, inst, sol); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to format solution", "details": err.Error()})
			return
		}
		resp.Text = text.String()
		c.JSON(http.StatusOK, resp)
	case "pdf":
		var buf bytes.Buffer
		if err := export.WritePDF(&buf, inst, sol); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to render PDF", "details": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	case "xlsx":
		var buf bytes.Buffer
		if err := export.WriteExcel(&buf, inst, sol); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to render workbook", "details": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run history not configured"})
		return
	}

	limit := defaultRunsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	runs, err := s.history.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs", "details": err.Error()})
		return
	}
	if runs == nil {
		runs = []project.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run history not configured"})
		return
	}

	run, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, project.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}
