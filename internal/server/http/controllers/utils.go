package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Helper functions for common HTTP responses

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeXRPCError writes an error in the XRPC shape: a machine-readable error
// name plus a human message.
func writeXRPCError(w http.ResponseWriter, status int, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(xrpcError{Error: name, Message: message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// parseLimit parses a limit string and returns a valid limit value.
//
// Returns 0 for empty strings or invalid values, which the feeds read as
// the default page size.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		return limit
	}
	return 0
}

// parseLangs reduces an Accept-Language header to base ISO 639 codes in
// preference order. An absent header, a wildcard or an unparsable header
// yields nil, which matches every language.
func parseLangs(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	var out []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == language.Und {
			return nil
		}
		base, conf := t.Base()
		if conf == language.No {
			continue
		}
		code := base.String()
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
