package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/pm2-remote/internal/models"
	"github.com/pandeptwidyaop/pm2-remote/internal/services"
)

const rootToken = "root-token-for-tests"

type staticVerifier map[string]string

func (v staticVerifier) VerifyToken(plaintext string) (*models.NamespaceToken, error) {
	ns, ok := v[plaintext]
	if !ok {
		return nil, services.ErrInvalidCredential
	}
	return &models.NamespaceToken{Namespace: ns}, nil
}

func setupRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": GetScope(c).Actor()})
	})
	r.Any("/api/test", handlers...)
	return r
}

func newAuth(totpSecret string) *services.AuthService {
	return services.NewAuthService(rootToken, staticVerifier{"sk_team-a_id_secret": "team-a"}, totpSecret)
}

func TestBearerAuth(t *testing.T) {
	router := setupRouter(BearerAuth(newAuth("")))

	tests := []struct {
		name       string
		method     string
		url        string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"root", "GET", "/api/test", "Bearer " + rootToken, http.StatusOK, `"root"`},
		{"namespace", "GET", "/api/test", "Bearer sk_team-a_id_secret", http.StatusOK, `"namespace:team-a"`},
		{"lowercase scheme", "GET", "/api/test", "bearer " + rootToken, http.StatusOK, `"root"`},
		{"missing header", "GET", "/api/test", "", http.StatusUnauthorized, "Authorization header required"},
		{"basic scheme", "GET", "/api/test", "Basic abc", http.StatusUnauthorized, "Authorization header required"},
		{"unknown token", "GET", "/api/test", "Bearer nope", http.StatusUnauthorized, "Invalid API token"},
		{"query token on GET", "GET", "/api/test?token=" + rootToken, "", http.StatusOK, `"root"`},
		{"query token on POST", "POST", "/api/test?token=" + rootToken, "", http.StatusUnauthorized, "Authorization header required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("expected body to contain %q, got %s", tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestRequireRoot(t *testing.T) {
	auth := newAuth("")
	router := setupRouter(BearerAuth(auth), RequireRoot(auth))

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Authorization", "Bearer sk_team-a_id_secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for namespace token, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+rootToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for root, got %d", w.Code)
	}
}

func TestRequireRootTOTP(t *testing.T) {
	// No code is sent, so the configured secret must reject the request.
	auth := newAuth("JBSWY3DPEHPK3PXP")
	router := setupRouter(BearerAuth(auth), RequireRoot(auth), RequireRootTOTP(auth))

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+rootToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without TOTP code, got %d", w.Code)
	}

	noTOTP := newAuth("")
	router = setupRouter(BearerAuth(noTOTP), RequireRoot(noTOTP), RequireRootTOTP(noTOTP))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 when TOTP is disabled, got %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	router := setupRouter(rl.Middleware())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/test", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Errorf("expected limit header 2, got %q", got)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/test", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestBodySizeLimit(t *testing.T) {
	router := setupRouter(BodySizeLimit(8))

	req := httptest.NewRequest("POST", "/api/test", strings.NewReader("this body is too long"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/test", strings.NewReader("ok"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	router := setupRouter(SecurityHeaders(), CORS())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/test", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options header")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected API responses to be uncacheable")
	}
}
