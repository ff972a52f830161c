package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"shopledger/internal/core"
)

const (
	maxBodyBytes = 1 << 20
	dateLayout   = "2006-01-02"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeJSON reads one JSON object into dest and runs its validate tags.
// Both kinds of failure come back as core validation errors with per-field
// details.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return withDetails(core.Validation(fmt.Errorf("invalid request body: %w", err)),
			map[string]string{"body": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return core.Validation(err)
	}
	details := map[string]string{}
	for _, fe := range errs {
		details[fieldPath(fe)] = validationMessage(fe)
	}
	return withDetails(core.Validation(errors.New("request validation failed")), details)
}

// fieldPath drops the top-level struct name from the namespace, so nested
// batch items read as "transactions[0].category".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return "is invalid"
}

// queryInt parses an optional integer query parameter bounded by [min, max].
func queryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, withDetails(core.Validation(fmt.Errorf("%s must be an integer", key)), map[string]string{key: "must be an integer"})
	}
	if v < min || v > max {
		return 0, withDetails(core.Validation(fmt.Errorf("%s must be between %d and %d", key, min, max)),
			map[string]string{key: fmt.Sprintf("must be between %d and %d", min, max)})
	}
	return v, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter as midnight in loc.
func queryDate(r *http.Request, key string, loc *time.Location) (time.Time, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, false, nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, false, withDetails(core.Validation(fmt.Errorf("%s must be a date in YYYY-MM-DD format", key)),
			map[string]string{key: "must be a date in YYYY-MM-DD format"})
	}
	return d, true, nil
}
