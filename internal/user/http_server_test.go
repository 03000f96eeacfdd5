package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/VehicleVault/VehicleVault/internal/common/config"
	"github.com/VehicleVault/VehicleVault/internal/common/db"
	"github.com/VehicleVault/VehicleVault/internal/common/logger"
	"github.com/VehicleVault/VehicleVault/internal/common/server"
	"github.com/go-chi/chi"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (*httptest.Server, *Repo) {
	t.Helper()

	gdb, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&User{}, &Token{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log, err := logger.NewLogger("error", "text", "stdout", "")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	srv := NewHTTPServer(gdb, log)
	router := chi.NewRouter()
	srv.Register(router)

	authCfg := config.AuthConfig{
		Enabled:     true,
		PublicPaths: []string{"POST /create/", "POST /auth/"},
	}
	handler := server.TokenAuthMiddleware(authCfg, srv.Repo(), log)(router)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, srv.Repo()
}

func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func registerAndLogin(t *testing.T, baseURL, username, password string) string {
	t.Helper()

	creds := map[string]string{"username": username, "password": password}
	if code, _ := doJSON(t, http.MethodPost, baseURL+"/create/", "", creds); code != http.StatusCreated {
		t.Fatalf("create user: status=%d", code)
	}
	code, body := doJSON(t, http.MethodPost, baseURL+"/auth/", "", creds)
	if code != http.StatusOK {
		t.Fatalf("obtain token: status=%d", code)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected token in response, got %v", body)
	}
	return token
}

func TestCreateUser(t *testing.T) {
	ts, repo := newTestServer(t)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/create/",
		"", map[string]string{"username": "dummy", "password": "dummy_pw"})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if body["username"] != "dummy" {
		t.Fatalf("username mismatch: %v", body)
	}
	if _, hasPassword := body["password"]; hasPassword {
		t.Fatalf("password must not appear in response: %v", body)
	}

	u, err := repo.FindByUsername(context.Background(), "dummy")
	if err != nil {
		t.Fatalf("find created user: %v", err)
	}
	if !VerifyPassword("dummy_pw", u.PasswordHash) {
		t.Fatalf("stored hash does not match password")
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	ts, _ := newTestServer(t)

	creds := map[string]string{"username": "dummy", "password": "dummy_pw"}
	if code, _ := doJSON(t, http.MethodPost, ts.URL+"/create/", "", creds); code != http.StatusCreated {
		t.Fatalf("first create should succeed")
	}
	code, body := doJSON(t, http.MethodPost, ts.URL+"/create/", "", creds)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate username, got %d", code)
	}
	if _, ok := body["username"]; !ok {
		t.Fatalf("expected username field error, got %v", body)
	}
}

func TestCreateUserShortPassword(t *testing.T) {
	ts, repo := newTestServer(t)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/create/",
		"", map[string]string{"username": "dummy", "password": "pw"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", code)
	}
	if _, ok := body["password"]; !ok {
		t.Fatalf("expected password field error, got %v", body)
	}

	// 校验失败不能落库
	if _, err := repo.FindByUsername(context.Background(), "dummy"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected no user row, got err=%v", err)
	}
}

func TestObtainToken(t *testing.T) {
	ts, _ := newTestServer(t)
	token := registerAndLogin(t, ts.URL, "dummy", "dummy_pw")
	if len(token) != 40 {
		t.Fatalf("expected 40-char opaque token, got %q", token)
	}
}

func TestObtainTokenWrongPassword(t *testing.T) {
	ts, _ := newTestServer(t)

	creds := map[string]string{"username": "dummy", "password": "dummy_pw"}
	if code, _ := doJSON(t, http.MethodPost, ts.URL+"/create/", "", creds); code != http.StatusCreated {
		t.Fatalf("create user failed")
	}

	code, body := doJSON(t, http.MethodPost, ts.URL+"/auth/",
		"", map[string]string{"username": "dummy", "password": "wrong"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong password, got %d", code)
	}
	if _, hasToken := body["token"]; hasToken {
		t.Fatalf("response must not contain token: %v", body)
	}
}

func TestObtainTokenMissingField(t *testing.T) {
	ts, _ := newTestServer(t)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/auth/",
		"", map[string]string{"username": "dummy"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", code)
	}
	if _, hasToken := body["token"]; hasToken {
		t.Fatalf("response must not contain token: %v", body)
	}
}

func TestTokenRotationOnRelogin(t *testing.T) {
	ts, repo := newTestServer(t)

	first := registerAndLogin(t, ts.URL, "dummy", "dummy_pw")

	code, body := doJSON(t, http.MethodPost, ts.URL+"/auth/",
		"", map[string]string{"username": "dummy", "password": "dummy_pw"})
	if code != http.StatusOK {
		t.Fatalf("relogin failed: %d", code)
	}
	second, _ := body["token"].(string)
	if second == "" || second == first {
		t.Fatalf("expected a fresh token, got %q", second)
	}

	// 旧 token 作废，新 token 可解析
	if _, ok, err := repo.ResolveToken(context.Background(), first); err != nil || ok {
		t.Fatalf("expected first token revoked, ok=%v err=%v", ok, err)
	}
	if _, ok, err := repo.ResolveToken(context.Background(), second); err != nil || !ok {
		t.Fatalf("expected second token valid, ok=%v err=%v", ok, err)
	}
}

func TestGetProfile(t *testing.T) {
	ts, repo := newTestServer(t)
	token := registerAndLogin(t, ts.URL, "dummy", "dummy_pw")

	code, body := doJSON(t, http.MethodGet, ts.URL+"/profile/", token, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	u, err := repo.FindByUsername(context.Background(), "dummy")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if body["id"] != u.ID || body["username"] != "dummy" {
		t.Fatalf("profile mismatch: %v", body)
	}
	if _, hasPassword := body["password"]; hasPassword {
		t.Fatalf("password must not appear in profile: %v", body)
	}
}

func TestGetProfileUnauthenticated(t *testing.T) {
	ts, _ := newTestServer(t)

	code, body := doJSON(t, http.MethodGet, ts.URL+"/profile/", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if body["detail"] == "" {
		t.Fatalf("expected detail in 401 response, got %v", body)
	}
}

func TestProfileUpdateNotAllowed(t *testing.T) {
	ts, repo := newTestServer(t)
	token := registerAndLogin(t, ts.URL, "dummy", "dummy_pw")

	payload := map[string]string{"username": "dummy", "password": "dummy_pw"}
	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		code, body := doJSON(t, method, ts.URL+"/profile/", token, payload)
		if code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", method, code)
		}
		if msg, _ := body["message"].(string); msg == "" {
			t.Fatalf("%s: expected message field, got %v", method, body)
		}
	}

	// 未鉴权时先报 401，轮不到 405
	if code, _ := doJSON(t, http.MethodPut, ts.URL+"/profile/", "", payload); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before 405 for anonymous caller, got %d", code)
	}

	// 用户未被改动
	if _, err := repo.FindByUsername(context.Background(), "dummy"); err != nil {
		t.Fatalf("user should be unchanged: %v", err)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	code, body := doJSON(t, http.MethodGet, ts.URL+"/profile/", "deadbeef", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", code)
	}
	if body["detail"] != "Invalid token." {
		t.Fatalf("unexpected detail: %v", body)
	}
}
