package privacy

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// MaskName keeps the first character of a participant name
// Example: "Emily" -> "E****"
func MaskName(name string) string {
	if name == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(name)
	return string(first) + strings.Repeat("*", utf8.RuneCountInString(name[size:]))
}

// MaskText replaces message content with its length
// Example: "see you at 5" -> "[12 chars]"
func MaskText(text string) string {
	return fmt.Sprintf("[%d chars]", utf8.RuneCountInString(text))
}

// MaskURL drops credentials, query and fragment from a URL. Values that do
// not parse are fully masked.
// Example: "http://user:pw@api:3000/v1?token=x" -> "http://api:3000/v1"
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.Repeat("*", len(raw))
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// MaskPath keeps only the base name of a local path
// Example: "/home/ava/docs/plan.pdf" -> ".../plan.pdf"
func MaskPath(path string) string {
	if path == "" {
		return ""
	}
	return ".../" + filepath.Base(path)
}

// MaskSensitiveFields masks known log fields, leaving the rest untouched
func MaskSensitiveFields(fields logrus.Fields) logrus.Fields {
	if fields == nil {
		return nil
	}

	masked := make(logrus.Fields, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "display_name", "sender_name":
			masked[k] = MaskName(s)
		case "text", "draft", "query":
			masked[k] = MaskText(s)
		case "api_base_url", "url":
			masked[k] = MaskURL(s)
		case "path":
			masked[k] = MaskPath(s)
		default:
			masked[k] = v
		}
	}
	return masked
}
