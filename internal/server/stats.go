package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	statsdomain "github.com/smallbiznis/peppolway/internal/exchangestats/domain"
)

func (s *Server) GetParticipantStats(c *gin.Context) {
	snapshot, err := s.statsSvc.Snapshot(c.Request.Context(), requestEnvironment(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) GetParticipantMonthlyStats(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		AbortWithError(c, newValidationError("year", "invalid_year", "year query parameter is required"))
		return
	}

	months, err := s.statsSvc.MonthlyBreakdown(c.Request.Context(), statsdomain.MonthlyBreakdownRequest{
		Environment:   requestEnvironment(c),
		ParticipantID: c.Param("id"),
		Year:          year,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"months": months})
}
