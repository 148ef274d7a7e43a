package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"unicode"
)

// ErrorCategory buckets a failed frame request for the failure breakdown.
// Known transport and context failures are matched anywhere in the wrap
// chain; anything else is named after its innermost cause.
func ErrorCategory(err error, statusCode int) string {
	if err == nil {
		return ""
	}
	if statusCode > 0 {
		return "HTTP error response"
	}

	var netErr net.Error
	var opErr *net.OpError
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Context deadline exceeded"
	case errors.Is(err, context.Canceled):
		return "Context canceled"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "Truncated response"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Network timeout"
	case errors.As(err, &opErr):
		return "Network error"
	case errors.As(err, &urlErr):
		return "Request URL error"
	}
	return causeName(err)
}

func causeName(err error) string {
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(next) {
		err = next
	}

	typeName := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if idx := strings.LastIndex(typeName, "/"); idx != -1 {
		typeName = typeName[idx+1:]
	}
	pkg, name, found := strings.Cut(typeName, ".")
	if !found {
		return humanizeTypeName(typeName)
	}
	switch pkg {
	case "errors", "fmt":
		return "Other error"
	case "main":
		return humanizeTypeName(name)
	}
	return fmt.Sprintf("%s (%s)", humanizeTypeName(name), pkg)
}

func humanizeTypeName(name string) string {
	if name == "" {
		return ""
	}

	var words []string
	var current []rune
	runes := []rune(name)

	appendWord := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		if isAllUpper(word) {
			words = append(words, word)
		} else {
			words = append(words, capitalize(word))
		}
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				appendWord()
			} else if unicode.IsDigit(r) && !unicode.IsDigit(prev) {
				appendWord()
			}
		}
		current = append(current, r)
	}
	appendWord()

	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	runes := []rune(lower)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
