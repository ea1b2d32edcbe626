package tracktime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/panyam/tracktime/apierr"
)

const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers with the machine code and message of err and a status
// that follows its kind.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatusFor(err), map[string]any{
		"success": false,
		"error":   apierr.Code(err),
		"message": err.Error(),
	})
}

func httpStatusFor(err error) int {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case apierr.KindConfigIncomplete, apierr.KindMissingCode, apierr.KindProviderDenied, apierr.KindNoResources:
		return http.StatusBadRequest
	case apierr.KindProviderHTTP:
		if ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden {
			return ae.Status
		}
		return http.StatusBadGateway
	case apierr.KindNetwork:
		return http.StatusServiceUnavailable
	case apierr.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// settingsURL builds the settings redirect target with the given query.
func (a *App) settingsURL(query url.Values) string {
	return a.SettingsPath + "?" + query.Encode()
}

func (a *App) redirectWithError(w http.ResponseWriter, r *http.Request, err error) {
	http.Redirect(w, r, a.settingsURL(url.Values{"error": {apierr.Code(err)}}), http.StatusFound)
}
