package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/postgen/postgen/clients"
	"github.com/postgen/postgen/config"
	"github.com/postgen/postgen/models"
	"github.com/postgen/postgen/services"
	"github.com/postgen/postgen/utils"
)

type fakeMastodon struct {
	mu       sync.Mutex
	statuses []string
}

func (f *fakeMastodon) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "good-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"mastodon-token","token_type":"Bearer","scope":"read write"}`))
	})
	mux.HandleFunc("/api/v1/accounts/verify_credentials", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer mastodon-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"4242","username":"carol","acct":"carol"}`))
	})
	mux.HandleFunc("/api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Header.Get("Authorization") != "Bearer mastodon-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"The access token is invalid"}`))
			return
		}
		f.mu.Lock()
		f.statuses = append(f.statuses, r.PostForm.Get("status"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"1"}`))
	})
	return mux
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	db       *gorm.DB
	jwt      *utils.JWTManager
	mastodon *fakeMastodon
}

func newTestServer(t *testing.T, completion string) *testServer {
	t.Helper()

	ai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": completion}}},
		})
		_, _ = w.Write(b)
	}))
	t.Cleanup(ai.Close)

	fm := &fakeMastodon{}
	ms := httptest.NewServer(fm.handler(t))
	t.Cleanup(ms.Close)

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	cfg := config.AppConfig{
		GinMode:              "test",
		AllowedOrigins:       []string{"*"},
		RateLimitPerMinute:   1000,
		MastodonInstance:     ms.URL,
		MastodonClientID:     "client-id",
		MastodonClientSecret: "client-secret",
		OAuthRedirectBase:    "http://localhost:8000",
		OpenAIModel:          "gpt-4o-mini",
	}
	jwt := utils.NewJWTManager("test-secret", time.Hour)
	mastodon := clients.NewMastodonClient(clients.MastodonConfig{InstanceURL: ms.URL, Timeout: time.Second})
	accounts := services.NewAccountService(db, utils.NewTokenSealer("seal"))

	handler := SetupRouter(cfg, Dependencies{
		DB:        db,
		Posts:     services.NewPostService(db, clients.NewAIClient(clients.AIConfig{BaseURL: ai.URL, Timeout: time.Second}), 0),
		Accounts:  accounts,
		Publisher: services.NewPublishService(accounts, mastodon),
		Mastodon:  mastodon,
		JWT:       jwt,
	})
	return &testServer{t: t, handler: handler, db: db, jwt: jwt, mastodon: fm}
}

// login creates a user and returns a session token for it.
func (s *testServer) login(username string) string {
	user := models.User{Username: username, Provider: "test", ProviderID: username}
	require.NoError(s.t, s.db.Create(&user).Error)
	token, _, err := s.jwt.GenerateToken(user.ID, user.Username)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token, body string) (int, map[string]interface{}) {
	s.t.Helper()
	w := s.raw(method, path, token, body)
	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (s *testServer) raw(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func TestGenerateAndList(t *testing.T) {
	s := newTestServer(t, " Line1 \n\nLine2 ")

	code, body := s.do(http.MethodPost, "/generate/", "", `{"prompt":"Announce our product launch"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Line1\nLine2", body["post"])
	assert.Equal(t, "Line1\nLine2", body["title"])
	assert.NotZero(t, body["id"])

	code, body = s.do(http.MethodGet, "/posts/", "", "")
	require.Equal(t, http.StatusOK, code)
	posts := body["posts"].([]interface{})
	require.Len(t, posts, 1)
	first := posts[0].(map[string]interface{})
	assert.Equal(t, "Announce our product launch", first["prompt"])
	assert.Equal(t, "Line1\nLine2", first["content"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, first["created_at"])
}

func TestGenerate_Errors(t *testing.T) {
	s := newTestServer(t, "text")

	code, body := s.do(http.MethodPost, "/generate/", "", `{"prompt":"   "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Prompt is required", body["error"])

	code, body = s.do(http.MethodPost, "/generate/", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid JSON payload", body["error"])

	code, body = s.do(http.MethodGet, "/generate/", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "Invalid request method", body["error"])
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	s := newTestServer(t, "  \n ")
	code, body := s.do(http.MethodPost, "/generate/", "", `{"prompt":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "AI did not return a valid response", body["error"])
}

func TestEditHistoryDeleteRestore(t *testing.T) {
	s := newTestServer(t, "Original text. More.")
	_, body := s.do(http.MethodPost, "/generate/", "", `{"prompt":"p"}`)
	id := int(body["id"].(float64))
	path := func(prefix string) string { return prefix + strconv.Itoa(id) + "/" }

	code, body := s.do(http.MethodPost, path("/edit-post/"), "", `{"title":"T2","content":"Edited"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Post updated!", body["message"])
	assert.Equal(t, "T2", body["new_title"])
	assert.Equal(t, "Edited", body["new_content"])

	code, body = s.do(http.MethodPost, path("/edit-post/"), "", `{"title":"","content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Title and content cannot be empty", body["error"])

	code, body = s.do(http.MethodGet, path("/post-history/"), "", "")
	require.Equal(t, http.StatusOK, code)
	history := body["history"].([]interface{})
	require.Len(t, history, 1)
	assert.Equal(t, "Original text. More.", history[0].(map[string]interface{})["previous_content"])

	code, body = s.do(http.MethodDelete, path("/delete-post/"), "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, body = s.do(http.MethodPost, path("/edit-post/"), "", `{"title":"T3","content":"x"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])

	_, body = s.do(http.MethodGet, "/posts/?status=active", "", "")
	assert.Empty(t, body["posts"])
	_, body = s.do(http.MethodGet, "/posts/", "", "")
	assert.Len(t, body["posts"], 1)

	code, _ = s.do(http.MethodPost, path("/restore-post/"), "", "")
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, path("/edit-post/"), "", `{"title":"T3","content":"x"}`)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/post-history/999/", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/post-history/abc/", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLinkedAccounts(t *testing.T) {
	s := newTestServer(t, "x")

	code, body := s.do(http.MethodGet, "/linked-accounts/", "", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "User is not authenticated", body["error"])

	code, _ = s.do(http.MethodPost, "/link-mastodon/", "", `{"access_token":"a","username":"b"}`)
	assert.Equal(t, http.StatusForbidden, code)

	token := s.login("dave")
	code, body = s.do(http.MethodPost, "/link-mastodon/", token, `{"access_token":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing Mastodon token or username", body["error"])

	for _, tok := range []string{"first", "second"} {
		code, body = s.do(http.MethodPost, "/link-mastodon/", token, `{"access_token":"`+tok+`","username":"dave"}`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Mastodon account linked!", body["success"])
	}

	code, body = s.do(http.MethodGet, "/linked-accounts/", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{map[string]interface{}{"platform": "mastodon", "username": "dave"}}, body["linked_accounts"])

	code, body = s.do(http.MethodPost, "/unlink-account/", token, `{"platform":"mastodon"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "mastodon account unlinked successfully!", body["success"])

	code, _ = s.do(http.MethodPost, "/unlink-account/", token, `{"platform":"mastodon"}`)
	assert.Equal(t, http.StatusOK, code)

	code, body = s.do(http.MethodPost, "/unlink-account/", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Platform is required", body["error"])
}

func TestPublish(t *testing.T) {
	s := newTestServer(t, "x")
	token := s.login("erin")

	code, body := s.do(http.MethodPost, "/mastodon-post/", token, `{"message":"hello"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No linked Mastodon account", body["error"])

	code, _ = s.do(http.MethodPost, "/link-mastodon/", token, `{"access_token":"mastodon-token","username":"erin"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(http.MethodPost, "/mastodon-post/", token, `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Posted successfully!", body["message"])

	code, _ = s.do(http.MethodGet, "/mastodon/"+url.PathEscape("from path")+"/", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"hello", "from path"}, s.mastodon.statuses)

	code, _ = s.do(http.MethodPost, "/mastodon-post/", "", `{"message":"hello"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, "/link-mastodon/", token, `{"access_token":"revoked","username":"erin"}`)
	require.Equal(t, http.StatusOK, code)
	code, body = s.do(http.MethodPost, "/mastodon-post/", token, `{"message":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "The access token is invalid")
}

func TestOAuthLoginFlow(t *testing.T) {
	s := newTestServer(t, "x")

	code, body := s.do(http.MethodGet, "/auth/login/mastodon/", "", "")
	require.Equal(t, http.StatusOK, code)
	state := body["state"].(string)
	authURL, err := url.Parse(body["authorization_url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "/oauth/authorize", authURL.Path)
	assert.Equal(t, state, authURL.Query().Get("state"))
	assert.Equal(t, "http://localhost:8000/auth/complete/mastodon/", authURL.Query().Get("redirect_uri"))

	w := s.raw(http.MethodGet, "/auth/complete/mastodon/?code=good-code&state="+state, "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, "carol", login["username"])
	require.NotEmpty(t, login["token"])
	assert.Contains(t, w.Header().Get("Set-Cookie"), "sessionid="+login["token"])

	// the state is single use
	code, _ = s.do(http.MethodGet, "/auth/complete/mastodon/?code=good-code&state="+state, "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	req := httptest.NewRequest(http.MethodGet, "/check-auth/", nil)
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: login["token"]})
	cw := httptest.NewRecorder()
	s.handler.ServeHTTP(cw, req)
	assert.JSONEq(t, `{"authenticated":true,"username":"carol"}`, cw.Body.String())

	_, body = s.do(http.MethodGet, "/linked-accounts/", login["token"], "")
	assert.Equal(t, []interface{}{map[string]interface{}{"platform": "mastodon", "username": "carol"}}, body["linked_accounts"])

	code, _ = s.do(http.MethodPost, "/logout/", login["token"], "")
	require.Equal(t, http.StatusOK, code)
	_, body = s.do(http.MethodGet, "/check-auth/", login["token"], "")
	assert.Equal(t, false, body["authenticated"])
}

func TestOpsEndpoints(t *testing.T) {
	s := newTestServer(t, "x")

	code, body := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	w := s.raw(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "http_requests_total") || strings.Contains(w.Body.String(), "go_goroutines"))

	code, body = s.do(http.MethodGet, "/no-such-page/", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not found", body["error"])

	code, body = s.do(http.MethodGet, "/stats/", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), body["post_count"])

	code, body = s.do(http.MethodGet, "/config/", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["mastodon_login"])
	assert.NotContains(t, body, "client_secret")
}
