package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/valetmatch/valetmatch/internal/service/jobs"
)

// ApprovalHandler is the public, unauthenticated payment-approval channel.
// The token in the link is the only credential; it is looked up, never parsed.
type ApprovalHandler struct {
	jobs jobs.JobUseCase
}

func NewApprovalHandler(jobSvc jobs.JobUseCase) *ApprovalHandler {
	return &ApprovalHandler{jobs: jobSvc}
}

func (h *ApprovalHandler) Register(router *gin.RouterGroup) {
	router.POST("/:token", h.approve)
}

func (h *ApprovalHandler) approve(c *gin.Context) {
	approved, err := h.jobs.ApproveByToken(c.Request.Context(), c.Param("token"), jobs.ApprovalAudit{
		IP:     c.ClientIP(),
		Device: c.Request.UserAgent(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "payment approved",
		"booking": toBookingResponse(approved),
	})
}
