package response

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestRateLimited(t *testing.T) {
	tests := map[string]struct {
		retryAfter time.Duration
		want       string
	}{
		"window remaining": {retryAfter: 90 * time.Second, want: "90"},
		"sub-second":       {retryAfter: 200 * time.Millisecond, want: "1"},
		"expired":          {retryAfter: -time.Second, want: "1"},
	}

	for name, tt := range tests {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			return RateLimited(c, tt.retryAfter)
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("%s: request: %v", name, err)
		}
		if resp.StatusCode != fiber.StatusTooManyRequests {
			t.Errorf("%s: status = %d", name, resp.StatusCode)
		}
		if got := resp.Header.Get("Retry-After"); got != tt.want {
			t.Errorf("%s: Retry-After = %q, want %q", name, got, tt.want)
		}

		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		var body struct {
			Error struct {
				Code    Code         `json:"code"`
				Details RetryDetails `json:"details"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("%s: decode: %v\nbody: %s", name, err, raw)
		}
		if body.Error.Code != CodeRateLimited || tt.want != itoa(body.Error.Details.RetryAfterSeconds) {
			t.Errorf("%s: body = %s", name, raw)
		}
	}
}

func TestJobNotFound(t *testing.T) {
	app := fiber.New()
	app.Get("/:id", func(c *fiber.Ctx) error {
		return JobNotFound(c, c.Params("id"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/job-1", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}

	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	details, _ := body.Error.Details.(map[string]any)
	if body.Error.Code != CodeJobNotFound || details["job_id"] != "job-1" {
		t.Errorf("body = %+v", body)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
