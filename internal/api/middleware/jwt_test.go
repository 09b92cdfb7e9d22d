package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() { gin.SetMode(gin.TestMode) }

func sign(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newRouter(cfg JWTConfig) *gin.Engine {
	r := gin.New()
	r.GET("/me", JWTAuth(cfg), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	return r
}

func do(r *gin.Engine, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	cfg := JWTConfig{Secret: "s3cret", Issuer: "scribe", Audience: "scribe-api"}
	r := newRouter(cfg)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	good := sign(t, cfg.Secret, jwt.RegisteredClaims{
		Subject: "u1", Issuer: "scribe", Audience: jwt.ClaimStrings{"scribe-api"}, ExpiresAt: exp,
	})

	cases := []struct {
		name   string
		target string
		auth   string
		status int
	}{
		{"header", "/me", "Bearer " + good, http.StatusOK},
		{"query fallback", "/me?access_token=" + good, "", http.StatusOK},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"wrong secret", "/me", "Bearer " + sign(t, "other", jwt.RegisteredClaims{
			Subject: "u1", Issuer: "scribe", Audience: jwt.ClaimStrings{"scribe-api"}, ExpiresAt: exp,
		}), http.StatusUnauthorized},
		{"wrong issuer", "/me", "Bearer " + sign(t, cfg.Secret, jwt.RegisteredClaims{
			Subject: "u1", Issuer: "elsewhere", Audience: jwt.ClaimStrings{"scribe-api"}, ExpiresAt: exp,
		}), http.StatusUnauthorized},
		{"wrong audience", "/me", "Bearer " + sign(t, cfg.Secret, jwt.RegisteredClaims{
			Subject: "u1", Issuer: "scribe", Audience: jwt.ClaimStrings{"other"}, ExpiresAt: exp,
		}), http.StatusUnauthorized},
		{"expired", "/me", "Bearer " + sign(t, cfg.Secret, jwt.RegisteredClaims{
			Subject: "u1", Issuer: "scribe", Audience: jwt.ClaimStrings{"scribe-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}), http.StatusUnauthorized},
		{"no subject", "/me", "Bearer " + sign(t, cfg.Secret, jwt.RegisteredClaims{
			Issuer: "scribe", Audience: jwt.ClaimStrings{"scribe-api"}, ExpiresAt: exp,
		}), http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.target, tc.auth)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if tc.status == http.StatusOK && w.Body.String() != "u1" {
				t.Fatalf("subject = %q", w.Body.String())
			}
		})
	}
}

func TestJWTAuthWithoutSecret(t *testing.T) {
	w := do(newRouter(JWTConfig{}), "/me", "Bearer x")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}
