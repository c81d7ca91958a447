package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osmscout-go/mapimport/internal/progress"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.ledger == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []any{}})
		return
	}
	runs, err := s.ledger.RecentRuns(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no ledger configured"})
		return
	}
	runID := c.Param("id")
	run, err := s.ledger.GetRun(runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	stages, err := s.ledger.ListStageRuns(runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "stages": stages})
}

func (s *Server) handleActiveRun(c *gin.Context) {
	runID, _ := s.activeRunID.Load().(string)
	snap, _ := s.latest.Load().(progress.Snapshot)
	if runID == "" {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":    true,
		"run_id":    runID,
		"stage":     snap.Stage,
		"step":      snap.Step,
		"processed": snap.Processed,
		"total":     snap.Total,
	})
}

func (s *Server) handleAbortActiveRun(c *gin.Context) {
	runID, _ := s.activeRunID.Load().(string)
	if runID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no active run"})
		return
	}
	if s.breaker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no breaker configured for this run"})
		return
	}
	s.breaker.Break()
	c.JSON(http.StatusAccepted, gin.H{"aborting": runID})
}
