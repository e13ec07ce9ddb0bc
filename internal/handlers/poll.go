package handlers

import (
	"net/http"

	"mood/internal/models"
	"mood/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PollHandler serves the anonymous voting pages
type PollHandler struct {
	votes  *services.VoteService
	logger *zap.SugaredLogger
}

func NewPollHandler(votes *services.VoteService, logger *zap.SugaredLogger) *PollHandler {
	return &PollHandler{votes: votes, logger: logger}
}

// Info handles GET /api/poll/:token
func (h *PollHandler) Info(c *gin.Context) {
	info, err := h.votes.PollInfo(c.Request.Context(), c.Param("token"))
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *PollHandler) render(c *gin.Context, code int, info *services.PollInfo, extra gin.H) {
	data := gin.H{
		"Poll":    info,
		"Moods":   models.Moods,
		"Title":   info.CampaignName,
		"Mood":    "",
		"Comment": "",
	}
	for k, v := range extra {
		data[k] = v
	}
	Render(c, code, "poll/vote.html", data)
}

// Show handles GET /poll/:token
func (h *PollHandler) Show(c *gin.Context) {
	ctx := c.Request.Context()
	token := c.Param("token")

	info, err := h.votes.PollInfo(ctx, token)
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	if info.Archived {
		Render(c, http.StatusOK, "poll/closed.html", gin.H{"Reason": "archived", "Title": info.CampaignName})
		return
	}

	voted, err := h.votes.HasVoted(ctx, token, submitter(c))
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	if voted {
		c.Redirect(http.StatusFound, services.ClosedPollPath)
		return
	}

	h.render(c, http.StatusOK, info, nil)
}

// Submit handles the form POST /poll/:token
func (h *PollHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	token := c.Param("token")
	mood := models.Mood(c.PostForm("mood"))
	comment := c.PostForm("comment")

	_, err := h.votes.SubmitVote(ctx, token, mood, comment, submitter(c))
	if err == nil {
		Render(c, http.StatusCreated, "poll/thanks.html", gin.H{"Title": "Merci"})
		return
	}

	switch services.KindOf(err) {
	case services.KindConflict:
		c.Redirect(http.StatusSeeOther, services.ClosedPollPath)
	case services.KindBadRequest:
		info, infoErr := h.votes.PollInfo(ctx, token)
		if infoErr != nil {
			PageError(c, h.logger, infoErr)
			return
		}
		_, se := describe(c, h.logger, err)
		h.render(c, http.StatusBadRequest, info, gin.H{
			"Error":   se.Message,
			"Mood":    string(mood),
			"Comment": comment,
		})
	default:
		PageError(c, h.logger, err)
	}
}

// Closed handles GET /poll/closed
func (h *PollHandler) Closed(c *gin.Context) {
	Render(c, http.StatusOK, "poll/closed.html", gin.H{"Reason": "voted", "Title": "Sondage clôturé"})
}
