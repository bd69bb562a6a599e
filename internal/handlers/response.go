// Package handlers exposes the services as JSON endpoints wrapped in the
// httpx envelope.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/diewo77/pharmacy-pos/validation"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// writeError maps a service error to a status code and envelope.
// Infrastructure failures are logged and reported generically.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	code := services.CodeOf(err)
	switch services.KindOf(err) {
	case services.KindValidation:
		var details any
		var ve *services.ValidationError
		if errors.As(err, &ve) && !ve.Violations.Empty() {
			details = ve.Violations
		}
		httpx.Fail(w, http.StatusBadRequest, code, err.Error(), details)
	case services.KindConflict:
		httpx.Fail(w, http.StatusBadRequest, code, err.Error(), nil)
	case services.KindNotFound:
		httpx.Fail(w, http.StatusNotFound, code, err.Error(), nil)
	case services.KindUnauthorized:
		httpx.Fail(w, http.StatusUnauthorized, code, err.Error(), nil)
	default:
		log.WithError(err).Error("request failed")
		httpx.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}

func invalid(field, code string) error {
	return services.NewValidationError(validation.Violations{field: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return invalid("body", "invalid_json")
	}
	return nil
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, invalid("id", "invalid_id")
	}
	return uint(id), nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, invalid(name, "invalid_bool")
	}
	return &b, nil
}

func queryUint(r *http.Request, name string) (uint, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, invalid(name, "invalid_id")
	}
	return uint(n), nil
}

// queryTime accepts RFC 3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func queryTime(r *http.Request, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(services.DateLayout, raw, time.Local)
	if err != nil {
		return nil, invalid(name, "invalid_date")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}
