package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"chainvault/internal/errs"
	"chainvault/pkg/utils"
)

const maxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
// On failure it writes a 400 and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	defer r.Body.Close()
	if err := decoder.Decode(dst); err != nil {
		utils.WriteError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// CheckBlankFields reports the first empty string field of a struct whose json
// tag is not marked omitempty.
func CheckBlankFields(value any) error {
	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		tag := typ.Field(i).Tag.Get("json")
		if strings.Contains(tag, ",omitempty") || field.Kind() != reflect.String {
			continue
		}
		if strings.TrimSpace(field.String()) == "" {
			name, _, _ := strings.Cut(tag, ",")
			return fmt.Errorf("%s is required: %w", name, errs.ErrInvalidInput)
		}
	}
	return nil
}

// UserID returns the authenticated caller, writing a 401 when there is none.
func UserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := utils.UserIDFrom(r.Context())
	if !ok {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
	}
	return id, ok
}
