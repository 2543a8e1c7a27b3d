package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letmevibethatforyou/promptplace"
	"github.com/letmevibethatforyou/promptplace/internal/app"
	"github.com/letmevibethatforyou/promptplace/internal/auth"
	"github.com/letmevibethatforyou/promptplace/internal/config"
	"github.com/letmevibethatforyou/promptplace/internal/payments"
	"github.com/letmevibethatforyou/promptplace/store"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := &config.Config{
		Demo:     true,
		Database: config.Database{URI: ":memory:"},
		Uploads:  config.Uploads{Dir: t.TempDir()},
	}
	cfg.ApplyDefaults()

	a, err := app.New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	a.Payments = &payments.Demo{}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func seedPrompt(t *testing.T, a *app.App, shopID, title, category string) *store.Prompt {
	t.Helper()
	p := &store.Prompt{
		ShopID:      shopID,
		Title:       title,
		Description: "A prompt about " + strings.ToLower(title),
		Category:    category,
		Price:       9.99,
		Status:      store.StatusLive,
	}
	require.NoError(t, a.Store.CreatePrompt(context.Background(), p))
	return p
}

func seedShop(t *testing.T, a *app.App, owner, name string) *store.Shop {
	t.Helper()
	shop := &store.Shop{OwnerID: owner, Name: name}
	require.NoError(t, a.Store.CreateShop(context.Background(), shop))
	return shop
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	return do(t, h, httptest.NewRequest(http.MethodGet, target, nil))
}

func postJSON(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, h, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSearch(t *testing.T) {
	a := newTestApp(t)
	shop := seedShop(t, a, "demo_user_seller", "Prompt Lab")
	seedPrompt(t, a, shop.ID, "ChatGPT Marketing Expert", "Chatgpt")
	seedPrompt(t, a, shop.ID, "Midjourney Portraits", "Midjourney")
	s := New(a)

	t.Run("blank query", func(t *testing.T) {
		rec := get(t, s, "/api/search?q=%20%20")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		rec = get(t, s, "/api/search")
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("substring fallback", func(t *testing.T) {
		rec := get(t, s, "/api/search?q=marketing")
		require.Equal(t, http.StatusOK, rec.Code)
		results := decode[[]promptplace.SearchResult](t, rec)
		require.Len(t, results, 1)
		assert.Equal(t, "ChatGPT Marketing Expert", results[0].Title)
		assert.Equal(t, "Prompt Lab", results[0].SellerName)
		assert.Equal(t, promptplace.PlaceholderImage, results[0].Image)
	})

	t.Run("no hits is an empty array", func(t *testing.T) {
		rec := get(t, s, "/api/search?q=zzz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestSearchCapsResults(t *testing.T) {
	a := newTestApp(t)
	for i := range 9 {
		seedPrompt(t, a, "", fmt.Sprintf("Story Writer %d", i), "Chatgpt")
	}
	rec := get(t, New(a), "/api/search?q=story")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]promptplace.SearchResult](t, rec), promptplace.DefaultLimit)
}

func TestSearchFailure(t *testing.T) {
	a := newTestApp(t)
	failing := promptplace.SearcherFunc(func(context.Context, string, ...promptplace.SearchOption) (*promptplace.Results, error) {
		return nil, errors.New("database is gone")
	})
	resolver, err := promptplace.NewResolver([]promptplace.Tier{{Name: "broken", Searcher: failing, Terminal: true}})
	require.NoError(t, err)
	a.Resolver = resolver

	rec := get(t, New(a), "/api/search?q=anything")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Search failed"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	rec := get(t, New(a), "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotContains(t, body, "elasticsearch")
}

func TestCatalog(t *testing.T) {
	a := newTestApp(t)
	shop := seedShop(t, a, "demo_user_seller", "Prompt Lab")
	p := seedPrompt(t, a, shop.ID, "SEO Blog Writer", "Chatgpt")
	seedPrompt(t, a, shop.ID, "Anime Characters", "Midjourney")
	require.NoError(t, a.Store.AddReview(context.Background(), &store.Review{PromptID: p.ID, UserID: "demo_user_buyer", Rating: 4}))
	s := New(a)

	t.Run("list", func(t *testing.T) {
		rec := get(t, s, "/api/prompts?page=1")
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[promptPage](t, rec)
		assert.Equal(t, 2, page.Total)
		assert.Len(t, page.Prompts, 2)

		rec = get(t, s, "/api/prompts?page=bogus")
		assert.Equal(t, 1, decode[promptPage](t, rec).Page)
	})

	t.Run("get", func(t *testing.T) {
		rec := get(t, s, "/api/prompts/"+p.ID)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, "SEO Blog Writer", body["title"])
		assert.Equal(t, 4.0, body["rating"])
		assert.Len(t, body["reviews"], 1)

		rec = get(t, s, "/api/prompts/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("related", func(t *testing.T) {
		rec := get(t, s, "/api/prompts/related?promptCategory=Midjourney")
		require.Equal(t, http.StatusOK, rec.Code)
		related := decode[[]store.Prompt](t, rec)
		require.Len(t, related, 1)
		assert.Equal(t, "Anime Characters", related[0].Title)

		rec = get(t, s, "/api/prompts/related")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("top shops", func(t *testing.T) {
		rec := get(t, s, "/api/shops/top")
		require.Equal(t, http.StatusOK, rec.Code)
		shops := decode[[]store.Shop](t, rec)
		require.Len(t, shops, 1)
		assert.Equal(t, 2, shops[0].ProductCount)
	})

	t.Run("user profile", func(t *testing.T) {
		rec := get(t, s, "/api/users/demo_user_admin")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, auth.RoleAdmin, decode[auth.User](t, rec).Role)
	})
}

func TestDevAuth(t *testing.T) {
	a := newTestApp(t)
	seedShop(t, a, "demo_user_seller", "Prompt Lab")
	s := New(a)

	rec := get(t, s, "/api/me")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, s, "/api/dev-auth/me")
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())

	rec = postJSON(t, s, "/api/dev-auth/login", `{"preset":"seller"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	withSession := func(target string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.AddCookie(cookies[0])
		return req
	}

	rec = do(t, s, withSession("/api/me"))
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		User auth.User   `json:"user"`
		Shop *store.Shop `json:"shop"`
	}](t, rec)
	assert.Equal(t, "demo_user_seller", me.User.ID)
	require.NotNil(t, me.Shop)
	assert.Equal(t, "Prompt Lab", me.Shop.Name)

	rec = do(t, s, withSession("/api/dev-auth/me"))
	assert.Equal(t, "demo_user_seller", decode[struct {
		User auth.User `json:"user"`
	}](t, rec).User.ID)

	rec = postJSON(t, s, "/api/dev-auth/login", `{"user":{"id":"u_1","email":"u1@example.com"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		User auth.User `json:"user"`
	}](t, rec)
	assert.Equal(t, "User", body.User.FirstName)

	for _, bad := range []string{`{}`, `{"preset":"root"}`, `not json`} {
		rec = postJSON(t, s, "/api/dev-auth/login", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	rec = postJSON(t, s, "/api/dev-auth/logout", ``)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Less(t, rec.Result().Cookies()[0].MaxAge, 0)
}

func TestDevAuthOutsideDemo(t *testing.T) {
	a := newTestApp(t)
	a.Sessions = nil
	s := New(a)

	for _, rec := range []*httptest.ResponseRecorder{
		postJSON(t, s, "/api/dev-auth/login", `{"preset":"buyer"}`),
		get(t, s, "/api/dev-auth/me"),
		postJSON(t, s, "/api/dev-auth/logout", ``),
	} {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Demo mode not enabled"}`, rec.Body.String())
	}
}

func TestPayments(t *testing.T) {
	s := New(newTestApp(t))

	rec := get(t, s, "/api/payments/publishable-key")
	assert.JSONEq(t, `{"publishableKey":"pk_demo_fake_key"}`, rec.Body.String())

	rec = postJSON(t, s, "/api/payments/intent", `{"amount":1500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	intent := decode[payments.Intent](t, rec)
	assert.True(t, strings.HasPrefix(intent.ID, "demo_pi_"))
	assert.Equal(t, "usd", intent.Currency)

	rec = postJSON(t, s, "/api/payments/intent", `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, s, "/api/payments/confirm", `{"paymentIntentId":"`+intent.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	conf := decode[payments.Confirmation](t, rec)
	assert.Equal(t, payments.StatusSucceeded, conf.Status)
	assert.True(t, strings.HasPrefix(conf.ChargeID, "demo_ch_"))

	rec = postJSON(t, s, "/api/payments/confirm", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func loginCookie(t *testing.T, h http.Handler, preset string) *http.Cookie {
	t.Helper()
	rec := postJSON(t, h, "/api/dev-auth/login", fmt.Sprintf(`{"preset":%q}`, preset))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", name)
	require.NoError(t, err)
	_, _ = io.WriteString(fw, content)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploads(t *testing.T) {
	s := New(newTestApp(t))
	session := loginCookie(t, s, "seller")

	req := uploadRequest(t, "cover.png", "fake png")
	req.AddCookie(session)
	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Files []struct {
			PublicID string `json:"public_id"`
			URL      string `json:"url"`
			Width    int    `json:"width"`
			Height   int    `json:"height"`
		} `json:"files"`
	}](t, rec)
	require.Len(t, body.Files, 1)
	f := body.Files[0]
	assert.Equal(t, "/uploads/"+f.PublicID, f.URL)
	assert.Equal(t, 800, f.Width)
	assert.Equal(t, 600, f.Height)

	rec = get(t, s, f.URL)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fake png", rec.Body.String())

	del := httptest.NewRequest(http.MethodDelete, "/api/uploads/"+f.PublicID, nil)
	del.AddCookie(session)
	rec = do(t, s, del)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, f.URL).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(session)
	rec = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No files provided"}`, rec.Body.String())
}

func TestUploadsRequireLogin(t *testing.T) {
	s := New(newTestApp(t))
	session := loginCookie(t, s, "seller")

	req := uploadRequest(t, "kept.png", "keep me")
	req.AddCookie(session)
	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	kept := decode[struct {
		Files []struct {
			PublicID string `json:"public_id"`
			URL      string `json:"url"`
		} `json:"files"`
	}](t, rec).Files
	require.Len(t, kept, 1)

	rec = do(t, s, uploadRequest(t, "anon.png", "anonymous"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Please login to access this resource"}`, rec.Body.String())

	rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/uploads/"+kept[0].PublicID, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusOK, get(t, s, kept[0].URL).Code)
}
