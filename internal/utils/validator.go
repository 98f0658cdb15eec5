package utils

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/Kosench/go-shortener/internal/errors"
)

const DefaultMaxURLLength = 2048

// URLValidator checks candidate URLs against a length bound and a host
// deny-list. It has no state beyond what it is built with.
type URLValidator struct {
	maxLength    int
	blockedHosts map[string]struct{}
}

func NewURLValidator(maxLength int, blockedHosts []string) *URLValidator {
	if maxLength <= 0 {
		maxLength = DefaultMaxURLLength
	}

	blocked := make(map[string]struct{}, len(blockedHosts))
	for _, host := range blockedHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			blocked[host] = struct{}{}
		}
	}

	return &URLValidator{
		maxLength:    maxLength,
		blockedHosts: blocked,
	}
}

func (v *URLValidator) Validate(rawURL string) error {
	if rawURL == "" {
		return apperrors.NewValidationError(apperrors.KindInvalidURL, "url", "URL cannot be empty")
	}

	if len(rawURL) > v.maxLength {
		return apperrors.NewValidationError(apperrors.KindURLTooLong, "url",
			fmt.Sprintf("URL is too long (max %d characters)", v.maxLength))
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewValidationError(apperrors.KindInvalidURL, "url", fmt.Sprintf("invalid URL format: %v", err))
	}

	if !parsedURL.IsAbs() || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return apperrors.NewValidationError(apperrors.KindInvalidURL, "url", "URL must start with http:// or https://")
	}

	host := strings.ToLower(parsedURL.Hostname())
	if host == "" {
		return apperrors.NewValidationError(apperrors.KindInvalidURL, "url", "URL must contain a valid host")
	}

	if _, blocked := v.blockedHosts[host]; blocked {
		return apperrors.NewValidationError(apperrors.KindBlockedURL, "url",
			fmt.Sprintf("host '%s' is not allowed", host))
	}

	return nil
}

func SanitizeInput(input string) string {
	// Удаляем управляющие символы и обрезаем пробелы
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1 // удаляем символ
		}
		return r
	}, input)

	// Только ASCII пробелы: U+00A0 и прочие остаются частью URL
	return strings.TrimFunc(result, isASCIISpace)
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
