package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/pkg/db/pagination"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	req := auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: c.Query("page_token"),
			PageSize:  int(queryPageSize(c)),
		},
		Action:     c.Query("action"),
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
		ActorType:  c.Query("actor_type"),
	}

	startAt, err := queryTime(c, "start_at")
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_time", "expected RFC 3339 timestamp"))
		return
	}
	req.StartAt = startAt

	endAt, err := queryTime(c, "end_at")
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_time", "expected RFC 3339 timestamp"))
		return
	}
	req.EndAt = endAt

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}
