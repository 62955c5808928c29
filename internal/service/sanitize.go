package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// cleanText strips markup from user text. Entities are decoded afterwards so
// plain punctuation is stored as typed.
func cleanText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(value)))
}
