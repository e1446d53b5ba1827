package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func newAuthApp(m *AuthMiddleware) *fiber.App {
	app := fiber.New()
	app.Get("/api/me", m.Authenticate(), func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c) + "|" + GetUserEmail(c))
	})
	return app
}

func doAuth(t *testing.T, app *fiber.App, header string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	buf := make([]byte, 512)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n])
}

func TestAuthenticateAcceptsValidToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)
	token, err := m.GenerateToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	status, body := doAuth(t, newAuthApp(m), "Bearer "+token)
	if status != 200 || body != "user-1|a@example.com" {
		t.Fatalf("status = %d, body = %s", status, body)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)
	other, _ := NewAuthMiddleware("other-secret", time.Hour).GenerateToken("user-1", "")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, _ := expired.SignedString([]byte("test-secret"))

	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"garbage token":  "Bearer not.a.token",
		"wrong secret":   "Bearer " + other,
		"expired":        "Bearer " + expiredToken,
	}
	app := newAuthApp(m)
	for name, header := range tests {
		if status, _ := doAuth(t, app, header); status != 401 {
			t.Errorf("%s: status = %d, want 401", name, status)
		}
	}
}

func TestAuthenticateWithoutSecret(t *testing.T) {
	m := NewAuthMiddleware("", 0)
	if _, err := m.GenerateToken("user-1", ""); err != ErrAuthNotConfigured {
		t.Fatalf("err = %v, want ErrAuthNotConfigured", err)
	}
	if status, _ := doAuth(t, newAuthApp(m), "Bearer x"); status != 401 {
		t.Fatalf("status = %d, want 401", status)
	}
}

func TestValidateTokenRejectsNoneAlgorithm(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, UserClaims{UserID: "user-1"})
	s, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)

	if _, err := m.ValidateToken(s); err == nil {
		t.Fatal("unsigned token accepted")
	}
}
