package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"expenseledger/internal/services"
)

const maxBodyBytes = 1 << 20

// outcomeCarrier is satisfied by every LedgerService result.
type outcomeCarrier interface {
	IsError() bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult maps a service result onto an HTTP status.
func writeResult(w http.ResponseWriter, res outcomeCarrier) {
	status := http.StatusOK
	if res.IsError() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

func invalidRequest(msg string) services.Outcome {
	return services.ErrorOutcome(services.KindInvalidRequest, msg)
}

// decodeBody reads a single JSON object into dst, rejecting unknown fields
// and trailing data.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body must be a JSON object")
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("malformed JSON: unexpected end of input")
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr) && typeErr.Field == "":
			return errors.New("request body must be a JSON object")
		case errors.As(err, &typeErr):
			return fmt.Errorf("field %q has the wrong type", typeErr.Field)
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return err
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// missingFields lists the names whose presence flag is false.
func missingFields(fields map[string]bool) error {
	var missing []string
	for _, name := range requiredOrder {
		if present, ok := fields[name]; ok && !present {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
}

// requiredOrder keeps error messages stable.
var requiredOrder = []string{"id", "date", "amount", "category", "start_date", "end_date"}
