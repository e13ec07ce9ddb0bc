package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"mood/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaigns *services.CampaignService
	logger    *zap.SugaredLogger
}

func NewCampaignHandler(campaigns *services.CampaignService, logger *zap.SugaredLogger) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, logger: logger}
}

// Create handles POST /campaigns
func (h *CampaignHandler) Create(c *gin.Context) {
	var in services.CampaignInput
	if err := c.ShouldBindJSON(&in); err != nil {
		JSONError(c, h.logger, services.BadRequest("Requête invalide"))
		return
	}
	out, err := h.campaigns.CreateCampaign(c.Request.Context(), ownerID(c), in)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// List handles GET /campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	list, err := h.campaigns.ListCampaigns(c.Request.Context(), ownerID(c))
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Links handles GET /campaigns/:id/links
func (h *CampaignHandler) Links(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	links, err := h.campaigns.Links(c.Request.Context(), ownerID(c), id)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// Managers handles GET /campaigns/:id/managers
func (h *CampaignHandler) Managers(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	names, err := h.campaigns.ManagerNames(c.Request.Context(), ownerID(c), &id)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

// AllManagers handles GET /managers
func (h *CampaignHandler) AllManagers(c *gin.Context) {
	names, err := h.campaigns.ManagerNames(c.Request.Context(), ownerID(c), nil)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

type addManagerRequest struct {
	ManagerName string `json:"managerName"`
}

// AddManager handles POST /campaigns/:id/managers
func (h *CampaignHandler) AddManager(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	var req addManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, h.logger, services.BadRequest("Requête invalide"))
		return
	}
	link, err := h.campaigns.AddManager(c.Request.Context(), ownerID(c), id, req.ManagerName)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

type archiveRequest struct {
	Archived *bool `json:"archived"`
}

// Archive handles PATCH /campaigns/:id/archive
func (h *CampaignHandler) Archive(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Archived == nil {
		JSONError(c, h.logger, services.BadRequest("Le champ archived est requis"))
		return
	}
	campaign, err := h.campaigns.SetArchived(c.Request.Context(), ownerID(c), id, *req.Archived)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "archived": campaign.Archived})
}

// AdminIndex handles GET /admin
func (h *CampaignHandler) AdminIndex(c *gin.Context) {
	h.renderIndex(c, http.StatusOK, nil)
}

func (h *CampaignHandler) renderIndex(c *gin.Context, code int, extra gin.H) {
	list, err := h.campaigns.ListCampaigns(c.Request.Context(), ownerID(c))
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	data := gin.H{"Campaigns": list, "Title": "Campagnes"}
	for k, v := range extra {
		data[k] = v
	}
	Render(c, code, "admin/index.html", data)
}

// splitManagers reads the textarea of the creation form, one name per line
// or separated by commas.
func splitManagers(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
}

// AdminCreate handles the form POST /admin/campaigns
func (h *CampaignHandler) AdminCreate(c *gin.Context) {
	in := services.CampaignInput{
		Name:             c.PostForm("name"),
		Description:      c.PostForm("description"),
		Managers:         splitManagers(c.PostForm("managers")),
		CommentsRequired: c.PostForm("comments_required") == "on",
	}
	if raw := strings.TrimSpace(c.PostForm("expires_at")); raw != "" {
		t, err := time.ParseInLocation("2006-01-02T15:04", raw, time.Local)
		if err != nil {
			h.renderIndex(c, http.StatusBadRequest, gin.H{"Error": "Date d'expiration invalide", "Form": in})
			return
		}
		in.ExpiresAt = &t
	}

	out, err := h.campaigns.CreateCampaign(c.Request.Context(), ownerID(c), in)
	if err != nil {
		if services.KindOf(err) == services.KindBadRequest {
			_, se := describe(c, h.logger, err)
			h.renderIndex(c, http.StatusBadRequest, gin.H{"Error": se.Message, "Form": in})
			return
		}
		PageError(c, h.logger, err)
		return
	}
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/admin/campaigns/%d", out.CampaignID))
}

// AdminDetail handles GET /admin/campaigns/:id
func (h *CampaignHandler) AdminDetail(c *gin.Context) {
	h.renderDetail(c, http.StatusOK, nil)
}

func (h *CampaignHandler) renderDetail(c *gin.Context, code int, extra gin.H) {
	ctx := c.Request.Context()
	id, err := paramID(c, "id")
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	campaign, err := h.campaigns.GetCampaign(ctx, ownerID(c), id)
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	links, err := h.campaigns.Links(ctx, ownerID(c), id)
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	data := gin.H{"Campaign": campaign, "Links": links, "Title": campaign.Name}
	for k, v := range extra {
		data[k] = v
	}
	Render(c, code, "admin/campaign.html", data)
}

// AdminAddManager handles the form POST /admin/campaigns/:id/managers
func (h *CampaignHandler) AdminAddManager(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	_, err = h.campaigns.AddManager(c.Request.Context(), ownerID(c), id, c.PostForm("manager_name"))
	if err != nil {
		switch services.KindOf(err) {
		case services.KindBadRequest, services.KindConflict:
			code, se := describe(c, h.logger, err)
			h.renderDetail(c, code, gin.H{"Error": se.Message})
		default:
			PageError(c, h.logger, err)
		}
		return
	}
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/admin/campaigns/%d", id))
}

// AdminArchive handles the form POST /admin/campaigns/:id/archive
func (h *CampaignHandler) AdminArchive(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	archived := c.PostForm("archived") == "true"
	if _, err := h.campaigns.SetArchived(c.Request.Context(), ownerID(c), id, archived); err != nil {
		PageError(c, h.logger, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}
