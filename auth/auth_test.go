package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

func whoAmI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := UserIDFromContext(r.Context()); ok {
			w.Header().Set("X-User", strconv.FormatUint(uint64(uid), 10))
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestSessionRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	CreateSession(rec, 7)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	uid, ok := ParseSession(req)
	if !ok || uid != 7 {
		t.Fatalf("expected uid 7, got %d ok=%v", uid, ok)
	}
}

func TestParseSession_TamperedSignature(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "1.forged"})
	if _, ok := ParseSession(req); ok {
		t.Fatal("forged cookie accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	raw, exp, err := IssueToken(42, "seller")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry in the past: %v", exp)
	}
	claims, err := ParseToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Role != "seller" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:         1,
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()},
	})
	expiredRaw, _ := expired.SignedString([]byte(tokenSecret))
	otherKey, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1}).SignedString([]byte("other"))

	for name, raw := range map[string]string{
		"empty":     "",
		"garbage":   "abc.def.ghi",
		"expired":   expiredRaw,
		"other key": otherKey,
	} {
		if _, err := ParseToken(raw); err != ErrInvalidToken {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestMiddleware_Bearer(t *testing.T) {
	raw, _, err := IssueToken(3, "admin")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	Middleware(whoAmI()).ServeHTTP(rec, req)
	if got := rec.Header().Get("X-User"); got != "3" {
		t.Fatalf("expected user 3 in context, got %q", got)
	}
}

func TestRequireAuth(t *testing.T) {
	t.Cleanup(func() { SetUserVerifier(nil) })
	h := RequireAuth(whoAmI())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	SetUserVerifier(func(_ context.Context, uid uint) bool { return uid == 1 })
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithUserID(req.Context(), 2)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("inactive user: expected 401 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithUserID(req.Context(), 1)))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
}
