package handlers

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mood/internal/metrics"
	"mood/internal/services"
	"mood/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ResultsHandler struct {
	results   *services.ResultsService
	campaigns *services.CampaignService
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewResultsHandler(results *services.ResultsService, campaigns *services.CampaignService, m *metrics.Metrics, logger *zap.SugaredLogger) *ResultsHandler {
	return &ResultsHandler{results: results, campaigns: campaigns, metrics: m, logger: logger, now: time.Now}
}

// parseFilter reads campaignId, managerName, preset, startDate and endDate.
// "all" or an empty value leaves a dimension unfiltered; a preset other
// than "all" wins over explicit dates.
func (h *ResultsHandler) parseFilter(c *gin.Context) (services.ResultsFilter, error) {
	var f services.ResultsFilter
	if raw := strings.TrimSpace(c.Query("campaignId")); raw != "" && raw != "all" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return f, services.BadRequest("ID de campagne invalide")
		}
		cid := uint(id)
		f.CampaignID = &cid
	}
	if m := utils.NormalizeName(c.Query("managerName")); m != "" && m != "all" {
		f.Manager = m
	}

	var err error
	if preset := strings.TrimSpace(c.Query("preset")); preset != "" && preset != services.PresetAll {
		f.From, f.To, err = services.PresetRange(preset, h.now())
	} else {
		f.From, f.To, err = services.ParseDateRange(c.Query("startDate"), c.Query("endDate"), time.Local)
	}
	return f, err
}

// Results handles GET /results
func (h *ResultsHandler) Results(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	res, err := h.results.GetFilteredResults(c.Request.Context(), filter, ownerID(c))
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CampaignOptions handles GET /results/campaigns
func (h *ResultsHandler) CampaignOptions(c *gin.Context) {
	opts, err := h.results.CampaignOptions(c.Request.Context(), ownerID(c))
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

// Export handles GET /campaigns/:id/export.csv
func (h *ResultsHandler) Export(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	filter, err := h.parseFilter(c)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	filter.CampaignID = &id

	res, err := h.results.GetFilteredResults(c.Request.Context(), filter, ownerID(c))
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := services.WriteCSV(&buf, res.ExportRows); err != nil {
		JSONError(c, h.logger, services.Internal("write csv", err))
		return
	}

	h.metrics.Export()
	filename := services.ExportFilename(res.CampaignName, h.now())
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Page handles GET /admin/results
func (h *ResultsHandler) Page(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ownerID(c)

	filter, err := h.parseFilter(c)
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	res, err := h.results.GetFilteredResults(ctx, filter, owner)
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	options, err := h.results.CampaignOptions(ctx, owner)
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	managers, err := h.campaigns.ManagerNames(ctx, owner, filter.CampaignID)
	if err != nil {
		PageError(c, h.logger, err)
		return
	}

	Render(c, http.StatusOK, "admin/results.html", gin.H{
		"Title":     "Résultats",
		"Results":   res,
		"Options":   options,
		"Managers":  managers,
		"Presets":   presets,
		"Selected":  selection(c),
		"ExportURL": exportURL(filter, c.Request.URL.RawQuery),
	})
}

type presetOption struct {
	Value string
	Label string
}

var presets = []presetOption{
	{services.PresetWeek, "7 jours"},
	{services.PresetMonth, "30 jours"},
	{services.PresetQuarter, "3 mois"},
	{services.PresetYear, "Cette année"},
	{services.PresetAll, "Tout"},
}

func selection(c *gin.Context) gin.H {
	get := func(key, def string) string {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			return v
		}
		return def
	}
	return gin.H{
		"Campaign":  get("campaignId", "all"),
		"Manager":   get("managerName", "all"),
		"Preset":    get("preset", services.PresetAll),
		"StartDate": get("startDate", ""),
		"EndDate":   get("endDate", ""),
	}
}

// exportURL links the CSV of the selected campaign, empty for all campaigns.
func exportURL(f services.ResultsFilter, rawQuery string) string {
	if f.CampaignID == nil {
		return ""
	}
	u := "/campaigns/" + strconv.FormatUint(uint64(*f.CampaignID), 10) + "/export.csv"
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}
