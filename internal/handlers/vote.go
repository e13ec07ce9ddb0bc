package handlers

import (
	"net/http"
	"strings"

	"mood/internal/models"
	"mood/internal/services"
	"mood/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VoteHandler struct {
	votes  *services.VoteService
	logger *zap.SugaredLogger
}

func NewVoteHandler(votes *services.VoteService, logger *zap.SugaredLogger) *VoteHandler {
	return &VoteHandler{votes: votes, logger: logger}
}

// submitter derives the voter identity from the request. Forwarded
// headers only count when the peer is a trusted proxy.
func submitter(c *gin.Context) services.Submitter {
	return services.Submitter{
		IP:        utils.NormalizeIP(c.ClientIP()),
		UserAgent: c.Request.UserAgent(),
	}
}

type voteRequest struct {
	PollLinkID string  `json:"pollLinkId"`
	Mood       string  `json:"mood"`
	Comment    *string `json:"comment"`
}

// Submit handles POST /votes
func (h *VoteHandler) Submit(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, h.logger, services.BadRequest("Requête invalide"))
		return
	}
	token := strings.TrimSpace(req.PollLinkID)
	if token == "" || req.Mood == "" {
		JSONError(c, h.logger, services.BadRequest("ID du sondage et humeur sont requis"))
		return
	}
	comment := ""
	if req.Comment != nil {
		comment = *req.Comment
	}

	id, err := h.votes.SubmitVote(c.Request.Context(), token, models.Mood(req.Mood), comment, submitter(c))
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Votre vote a bien été enregistré"})
}

// Status handles GET /votes/status
func (h *VoteHandler) Status(c *gin.Context) {
	token := strings.TrimSpace(c.Query("pollLinkId"))
	if token == "" {
		JSONError(c, h.logger, services.BadRequest("ID du sondage requis"))
		return
	}
	voted, err := h.votes.HasVoted(c.Request.Context(), token, submitter(c))
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasVoted": voted})
}
