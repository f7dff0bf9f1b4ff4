//go:build integration

package integration

import (
	"net/http"
	"testing"
)

// TestMain already waited on /readyz before the suite started, so this
// guards the probe wiring itself: both endpoints answer 200 with an ok
// status while postgres is up.
func TestHealthProbes(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		resp := doGet(t, path)
		body := decodeJSON[healthResponse](t, resp)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		if body.Status != "ok" {
			t.Errorf("%s: expected status ok, got %q", path, body.Status)
		}
	}
}
