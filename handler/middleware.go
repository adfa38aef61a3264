package handler

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/slack-go/slack"
)

// VerifySlackRequest checks the X-Slack-Signature header against the
// signing secret before passing the request on. The body is restored so
// the next handler can read it again.
func VerifySlackRequest(signingSecret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			slog.Error("reading request body failed", slog.Any("error", err))
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		sv, err := slack.NewSecretsVerifier(r.Header, signingSecret)
		if err != nil {
			slog.Warn("building secrets verifier failed", slog.Any("error", err))
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if _, err := sv.Write(body); err != nil {
			slog.Error("writing body to verifier failed", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if err := sv.Ensure(); err != nil {
			slog.Warn("slack signature mismatch", slog.Any("error", err))
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next(w, r)
	}
}

// RequireAPIToken guards the admin endpoints with a bearer token. An
// empty configured token disables the endpoints entirely.
func RequireAPIToken(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
