package router

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"mood/internal/config"
	"mood/internal/metrics"
	"mood/internal/models"
	"mood/internal/testutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const adminEmail = "admin@example.com"

// httptest requests come from this address unless peer is set.
const proxyAddr = "192.0.2.1"

type testServer struct {
	engine *gin.Engine
	conn   *gorm.DB
	admin  *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn := testutil.NewDB(t)
	reg := prometheus.NewRegistry()
	engine, err := New(Deps{
		Config: config.Config{
			Environment:    "test",
			BaseURL:        "http://mood.test",
			TrustedProxies: []string{proxyAddr},
			Auth: config.Auth{
				SessionSecret:   "test-secret",
				LoginRateLimit:  5,
				LoginRateWindow: time.Minute,
			},
		},
		DB:       conn,
		Logger:   testutil.Logger(),
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	})
	require.NoError(t, err)
	return &testServer{
		engine: engine,
		conn:   conn,
		admin:  testutil.CreateUser(t, conn, adminEmail),
	}
}

type request struct {
	method  string
	path    string
	body    string
	form    url.Values
	ip      string
	peer    string
	cookies []*http.Cookie
}

func (s *testServer) do(r request) *httptest.ResponseRecorder {
	var req *http.Request
	switch {
	case r.form != nil:
		req = httptest.NewRequest(r.method, r.path, strings.NewReader(r.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case r.body != "":
		req = httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
		req.Header.Set("Content-Type", "application/json")
	default:
		req = httptest.NewRequest(r.method, r.path, nil)
	}
	if r.ip != "" {
		req.Header.Set("X-Forwarded-For", r.ip)
	}
	if r.peer != "" {
		req.RemoteAddr = r.peer
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) []*http.Cookie {
	t.Helper()
	w := s.do(request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   `{"email":"` + adminEmail + `","password":"password123"}`,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func document(t *testing.T, w *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	return doc
}

func voteBody(token, mood, comment string) string {
	return fmt.Sprintf(`{"pollLinkId":%q,"mood":%q,"comment":%q}`, token, mood, comment)
}

func TestSubmitVoteTwice(t *testing.T) {
	s := newTestServer(t)
	_, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1", "Alice")
	token := links[0].Token

	w := s.do(request{method: http.MethodPost, path: "/votes", body: voteBody(token, "green", "Top"), ip: "203.0.113.5"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID      uint   `json:"id"`
		Message string `json:"message"`
	}
	decode(t, w, &created)
	assert.NotZero(t, created.ID)
	assert.NotEmpty(t, created.Message)

	w = s.do(request{method: http.MethodPost, path: "/votes", body: voteBody(token, "red", ""), ip: "203.0.113.5"})
	assert.Equal(t, http.StatusConflict, w.Code)
	var conflict struct {
		Error    string `json:"error"`
		Redirect string `json:"redirect"`
	}
	decode(t, w, &conflict)
	assert.NotEmpty(t, conflict.Error)
	assert.Equal(t, "/poll/closed", conflict.Redirect)

	var votes int64
	require.NoError(t, s.conn.Model(&models.Vote{}).Count(&votes).Error)
	assert.Equal(t, int64(1), votes)
}

func TestSubmitVoteForwardedForFromUntrustedPeer(t *testing.T) {
	s := newTestServer(t)
	_, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1", "Alice")
	token := links[0].Token

	codes := make([]int, 0, 3)
	for _, fwd := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		w := s.do(request{method: http.MethodPost, path: "/votes", body: voteBody(token, "green", ""), ip: fwd, peer: "198.51.100.20:4321"})
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusConflict, http.StatusConflict}, codes)

	var votes []models.Vote
	require.NoError(t, s.conn.Find(&votes).Error)
	require.Len(t, votes, 1)
	assert.Equal(t, "198.51.100.20", votes[0].IPAddress)
}

func TestSubmitVoteForwardedForFromTrustedProxy(t *testing.T) {
	s := newTestServer(t)
	_, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1", "Alice")
	token := links[0].Token

	for _, fwd := range []string{"203.0.113.5", "198.51.100.7"} {
		w := s.do(request{method: http.MethodPost, path: "/votes", body: voteBody(token, "green", ""), ip: fwd})
		assert.Equal(t, http.StatusCreated, w.Code, fwd)
	}

	var votes []models.Vote
	require.NoError(t, s.conn.Order("id").Find(&votes).Error)
	require.Len(t, votes, 2)
	assert.Equal(t, "203.0.113.5", votes[0].IPAddress)
	assert.Equal(t, "198.51.100.7", votes[1].IPAddress)
}

func TestSubmitVoteValidation(t *testing.T) {
	s := newTestServer(t)
	_, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1", "Alice")

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"missing token", voteBody("", "green", ""), http.StatusBadRequest},
		{"unknown mood", voteBody(links[0].Token, "purple", ""), http.StatusBadRequest},
		{"unknown token", voteBody("nope", "green", ""), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(request{method: http.MethodPost, path: "/votes", body: tt.body, ip: "203.0.113.5"})
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestVoteStatus(t *testing.T) {
	s := newTestServer(t)
	_, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1", "Alice")
	token := links[0].Token

	status := func(ip string) bool {
		w := s.do(request{method: http.MethodGet, path: "/votes/status?pollLinkId=" + token, ip: ip})
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			HasVoted bool `json:"hasVoted"`
		}
		decode(t, w, &body)
		return body.HasVoted
	}

	assert.False(t, status("203.0.113.5"))
	s.do(request{method: http.MethodPost, path: "/votes", body: voteBody(token, "blue", ""), ip: "203.0.113.5"})
	assert.True(t, status("203.0.113.5"))
	assert.False(t, status("198.51.100.7"))

	w := s.do(request{method: http.MethodGet, path: "/votes/status"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRequireLogin(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/campaigns", "/results", "/managers", "/results/campaigns", "/campaigns/1/export.csv"} {
		w := s.do(request{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := s.do(request{method: http.MethodGet, path: "/admin"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLoginPage(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodPost, path: "/login", form: url.Values{
		"email":    {adminEmail},
		"password": {"wrong"},
	}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(request{method: http.MethodPost, path: "/login", form: url.Values{
		"email":    {adminEmail},
		"password": {"password123"},
	}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	w = s.do(request{method: http.MethodGet, path: "/admin", cookies: w.Result().Cookies()})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginThrottled(t *testing.T) {
	s := newTestServer(t)
	body := `{"email":"` + adminEmail + `","password":"wrong"}`

	for i := 0; i < 5; i++ {
		w := s.do(request{method: http.MethodPost, path: "/api/auth/login", body: body, ip: "203.0.113.5"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := s.do(request{method: http.MethodPost, path: "/api/auth/login", body: body, ip: "203.0.113.5"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLoginThrottleIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	s := newTestServer(t)
	body := `{"email":"` + adminEmail + `","password":"wrong"}`

	for i := 0; i < 5; i++ {
		fwd := fmt.Sprintf("10.0.0.%d", i+1)
		w := s.do(request{method: http.MethodPost, path: "/api/auth/login", body: body, ip: fwd, peer: "198.51.100.20:4321"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := s.do(request{method: http.MethodPost, path: "/api/auth/login", body: body, ip: "10.0.0.99", peer: "198.51.100.20:4321"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCreateCampaignAPI(t *testing.T) {
	s := newTestServer(t)
	cookies := s.login(t)

	w := s.do(request{
		method:  http.MethodPost,
		path:    "/campaigns",
		body:    `{"name":"Q2 pulse","managers":["Alice"," Bob ","Alice"]}`,
		cookies: cookies,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		CampaignID     uint   `json:"campaignId"`
		CampaignName   string `json:"campaignName"`
		GeneratedLinks []struct {
			ManagerName string `json:"managerName"`
			Token       string `json:"token"`
			URL         string `json:"url"`
		} `json:"generatedLinks"`
	}
	decode(t, w, &created)
	assert.Equal(t, "Q2 pulse", created.CampaignName)
	require.Len(t, created.GeneratedLinks, 2)
	for _, l := range created.GeneratedLinks {
		assert.Equal(t, "http://mood.test/poll/"+l.Token, l.URL)
	}

	w = s.do(request{method: http.MethodGet, path: "/campaigns", cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	var list []struct {
		ID           uint `json:"id"`
		ManagerCount int  `json:"managerCount"`
		Progress     int  `json:"progress"`
	}
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, created.CampaignID, list[0].ID)
	assert.Equal(t, 2, list[0].ManagerCount)
	assert.Equal(t, 0, list[0].Progress)

	w = s.do(request{
		method:  http.MethodPost,
		path:    fmt.Sprintf("/campaigns/%d/managers", created.CampaignID),
		body:    `{"managerName":"Alice"}`,
		cookies: cookies,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(request{
		method:  http.MethodPatch,
		path:    fmt.Sprintf("/campaigns/%d/archive", created.CampaignID),
		body:    `{"archived":true}`,
		cookies: cookies,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"archived":true}`, w.Body.String())
}

func TestResultsAndExport(t *testing.T) {
	s := newTestServer(t)
	campaign, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1 pulse", "Alice", "Bob")
	w := s.do(request{method: http.MethodPost, path: "/votes", body: voteBody(links[0].Token, "green", "Super ambiance"), ip: "203.0.113.5"})
	require.Equal(t, http.StatusCreated, w.Code)

	cookies := s.login(t)

	w = s.do(request{method: http.MethodGet, path: fmt.Sprintf("/results?campaignId=%d", campaign.ID), cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		TotalVotes        int    `json:"totalVotes"`
		DominantMood      string `json:"dominantMood"`
		ParticipationRate string `json:"participationRate"`
		CampaignName      string `json:"campaignName"`
		Comments          []struct {
			Manager string `json:"manager"`
			Comment string `json:"comment"`
		} `json:"comments"`
	}
	decode(t, w, &res)
	assert.Equal(t, 1, res.TotalVotes)
	assert.Equal(t, "Très bien", res.DominantMood)
	assert.Equal(t, "50%", res.ParticipationRate)
	assert.Equal(t, "Q1 pulse", res.CampaignName)
	require.Len(t, res.Comments, 1)
	assert.Equal(t, "Alice", res.Comments[0].Manager)

	w = s.do(request{method: http.MethodGet, path: "/results?managerName=Bob", cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.Equal(t, 0, res.TotalVotes)
	assert.Equal(t, "0%", res.ParticipationRate)

	w = s.do(request{method: http.MethodGet, path: "/results?startDate=2024-02-01&endDate=2024-01-01", cookies: cookies})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(request{method: http.MethodGet, path: fmt.Sprintf("/campaigns/%d/export.csv", campaign.ID), cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	disposition := w.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, "attachment;"), disposition)
	assert.Contains(t, disposition, "resultats_Q1_pulse_")

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "\ufeffDate;Campagne;Manager;Utilisateur;Humeur;Commentaire"), body)
	assert.Contains(t, body, "Q1 pulse;Alice;Anonyme;Très bien;Super ambiance")
}

func TestResultsOtherOwner(t *testing.T) {
	s := newTestServer(t)
	other := testutil.CreateUser(t, s.conn, "other@example.com")
	campaign, _ := testutil.CreateCampaign(t, s.conn, other.ID, "Hidden", "Carol")
	cookies := s.login(t)

	w := s.do(request{method: http.MethodGet, path: fmt.Sprintf("/results?campaignId=%d", campaign.ID), cookies: cookies})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(request{method: http.MethodGet, path: fmt.Sprintf("/campaigns/%d/links", campaign.ID), cookies: cookies})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPollPages(t *testing.T) {
	s := newTestServer(t)
	_, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1 pulse", "Alice")
	path := "/poll/" + links[0].Token

	w := s.do(request{method: http.MethodGet, path: path})
	require.Equal(t, http.StatusOK, w.Code)
	doc := document(t, w)
	assert.Equal(t, "Q1 pulse", doc.Find("#campaign-name").Text())
	assert.Equal(t, "Alice", doc.Find("#manager-name").Text())

	w = s.do(request{method: http.MethodPost, path: path, form: url.Values{"mood": {"purple"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(request{method: http.MethodPost, path: path, form: url.Values{"mood": {"yellow"}, "comment": {"Charge élevée"}}})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, document(t, w).Find("#thanks").Length())

	// Same address again
	w = s.do(request{method: http.MethodGet, path: path})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/poll/closed", w.Header().Get("Location"))

	w = s.do(request{method: http.MethodPost, path: path, form: url.Values{"mood": {"green"}}})
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/poll/closed"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, document(t, w).Find("#closed").Length())

	w = s.do(request{method: http.MethodGet, path: "/poll/unknown-token"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Lien de sondage invalide ou expiré", document(t, w).Find("#error-message").Text())
}

func TestPollInfoAPI(t *testing.T) {
	s := newTestServer(t)
	campaign, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1 pulse", "Alice")
	require.NoError(t, s.conn.Model(campaign).Update("archived", true).Error)

	w := s.do(request{method: http.MethodGet, path: "/api/poll/" + links[0].Token})
	require.Equal(t, http.StatusOK, w.Code)
	var info struct {
		ManagerName  string `json:"managerName"`
		CampaignName string `json:"campaignName"`
		Archived     bool   `json:"archived"`
	}
	decode(t, w, &info)
	assert.Equal(t, "Alice", info.ManagerName)
	assert.True(t, info.Archived)

	w = s.do(request{method: http.MethodGet, path: "/poll/" + links[0].Token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, document(t, w).Find("#closed").Length())
}

func TestAdminPages(t *testing.T) {
	s := newTestServer(t)
	campaign, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1 pulse", "Bob", "Alice")
	testutil.CreateVote(t, s.conn, links[0], models.MoodRed, "", "203.0.113.5", time.Now())
	cookies := s.login(t)

	w := s.do(request{method: http.MethodGet, path: "/admin", cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, document(t, w).Find("table#campaigns tbody tr").Length())

	w = s.do(request{method: http.MethodGet, path: fmt.Sprintf("/admin/campaigns/%d", campaign.ID), cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	var managers []string
	document(t, w).Find("table#links td.manager").Each(func(_ int, sel *goquery.Selection) {
		managers = append(managers, sel.Text())
	})
	assert.Equal(t, []string{"Alice", "Bob"}, managers)

	w = s.do(request{method: http.MethodGet, path: fmt.Sprintf("/admin/results?campaignId=%d", campaign.ID), cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	doc := document(t, w)
	assert.Equal(t, "1", doc.Find("#total-votes").Text())
	assert.Equal(t, "50%", doc.Find("#participation-rate").Text())
	assert.Equal(t, "1", doc.Find(`tr[data-mood="red"] td.votes`).Text())

	w = s.do(request{method: http.MethodPost, path: "/admin/campaigns", cookies: cookies, form: url.Values{
		"name":     {"Q3"},
		"managers": {"Dana\nEve"},
	}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/admin/campaigns/"))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	_, links := testutil.CreateCampaign(t, s.conn, s.admin.ID, "Q1", "Alice")
	s.do(request{method: http.MethodPost, path: "/votes", body: voteBody(links[0].Token, "green", ""), ip: "203.0.113.5"})

	w := s.do(request{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = s.do(request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mood_votes_total{outcome="accepted"} 1`)
}

func TestRootRedirects(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	w = s.do(request{method: http.MethodGet, path: "/nowhere"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGzipPages(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(zr)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find(`form[action="/login"]`).Length())
}
