package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/valetmatch/valetmatch/internal/service/bids"
	"github.com/valetmatch/valetmatch/internal/service/jobs"
)

// ValeterHandler is the valeter portal: respond to dispatched jobs and walk an
// awarded job through to in-person payment approval. Every route runs behind
// ValeterAuth.
type ValeterHandler struct {
	bids bids.BidUseCase
	jobs jobs.JobUseCase
}

func NewValeterHandler(bidSvc bids.BidUseCase, jobSvc jobs.JobUseCase) *ValeterHandler {
	return &ValeterHandler{bids: bidSvc, jobs: jobSvc}
}

func (h *ValeterHandler) Register(router *gin.RouterGroup) {
	router.POST("/jobs/:id/accept", h.accept)
	router.POST("/jobs/:id/decline", h.decline)
	router.POST("/jobs/:id/start", h.start)
	router.POST("/jobs/:id/complete", h.complete)
	router.POST("/jobs/:id/approve-device", h.approveOnDevice)
}

func (h *ValeterHandler) accept(c *gin.Context) {
	h.respond(c, true)
}

func (h *ValeterHandler) decline(c *gin.Context) {
	h.respond(c, false)
}

func (h *ValeterHandler) respond(c *gin.Context, accepted bool) {
	outcome, err := h.bids.RecordResponse(c.Request.Context(), c.Param("id"), authedValeterID(c), accepted)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome": string(outcome.Outcome),
		"booking": toBookingResponse(outcome.Booking),
	})
}

func (h *ValeterHandler) start(c *gin.Context) {
	started, err := h.jobs.StartJob(c.Request.Context(), c.Param("id"), authedValeterID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(started))
}

func (h *ValeterHandler) complete(c *gin.Context) {
	completed, err := h.jobs.CompleteJob(c.Request.Context(), c.Param("id"), authedValeterID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	// The token goes back to the valeter as well so the approval link can be
	// shown in person when the customer's email does not arrive.
	c.JSON(http.StatusOK, gin.H{
		"booking":        toBookingResponse(completed),
		"approval_token": completed.ApprovalToken,
	})
}

func (h *ValeterHandler) approveOnDevice(c *gin.Context) {
	approved, err := h.jobs.ApproveOnDevice(c.Request.Context(), c.Param("id"), authedValeterID(c), jobs.ApprovalAudit{
		IP:     c.ClientIP(),
		Device: c.Request.UserAgent(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking":      toBookingResponse(approved),
		"payout_pence": approved.PayoutPence,
	})
}
