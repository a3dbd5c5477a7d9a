// Package fingerprint derives a coarse client fingerprint from request headers.
//
// Only stable traits go in: browser family and major version, OS, platform, the
// mobile flag and the primary language. A browser's minor update keeps the
// fingerprint; a major update or a different device changes it.
package fingerprint

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknown = "unknown"

// Traits are the parsed components of a fingerprint.
type Traits struct {
	Browser      string
	MajorVersion string
	OS           string
	Platform     string
	Mobile       bool
	Bot          bool
	Language     string
}

// Parse extracts traits from a User-Agent and Accept-Language header pair.
func Parse(userAgent, acceptLanguage string) Traits {
	t := Traits{
		Browser:      unknown,
		MajorVersion: unknown,
		OS:           unknown,
		Platform:     unknown,
		Language:     primaryLanguage(acceptLanguage),
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return t
	}

	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	t.Browser = orUnknown(name)
	t.MajorVersion = orUnknown(majorVersion(version))
	t.OS = orUnknown(ua.OS())
	t.Platform = orUnknown(ua.Platform())
	t.Mobile = ua.Mobile()
	t.Bot = ua.Bot()
	return t
}

// Composite is the canonical string that gets hashed.
func (t Traits) Composite() string {
	mobile := "desktop"
	if t.Mobile {
		mobile = "mobile"
	}
	return strings.Join([]string{t.Browser, t.MajorVersion, t.OS, t.Platform, mobile, t.Language}, "|")
}

// Compute is Parse followed by Composite.
func Compute(userAgent, acceptLanguage string) string {
	return Parse(userAgent, acceptLanguage).Composite()
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(strings.TrimSpace(v), ".")
	return major
}

// primaryLanguage returns the first language range, lowercased, without its quality.
func primaryLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	first = strings.ToLower(strings.TrimSpace(first))
	if first == "" || first == "*" {
		return unknown
	}
	return first
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return unknown
	}
	return s
}
