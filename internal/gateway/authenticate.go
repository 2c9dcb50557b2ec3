package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// authenticate is the optional auth side-channel: an HTTP GET against
// the configured template with {user}/{pass} URL-encoded substitutions;
// 2xx accepts, anything else rejects. Missing credentials fail without
// ever making the request, so that case is distinguishable from a
// back-end rejection of credentials that were actually supplied.
func authenticate(ctx context.Context, template, username, password string) *diag.Error {
	if template == "" {
		return nil
	}
	if username == "" || password == "" {
		return diag.New(diag.BadCredentials, "credentials not supplied")
	}
	target := strings.NewReplacer(
		"{user}", url.QueryEscape(username),
		"{pass}", url.QueryEscape(password),
	).Replace(template)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return diag.New(diag.BadCredentials, err.Error())
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return diag.New(diag.BadCredentials, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return diag.New(diag.BadCredentials, "credentials are bad")
	}
	return nil
}
