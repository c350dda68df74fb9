package catalog

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims and NFC-normalises a reference name.
func NormalizeName(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

// timestampDigits returns the n low-order digits of the unix millisecond clock.
func timestampDigits(now time.Time, n int) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) <= n {
		return ms
	}
	return ms[len(ms)-n:]
}

// categorySlug builds a URL slug with a timestamp suffix so equal-looking names never collide.
func categorySlug(name string, now time.Time) string {
	base := slug.Make(name)
	if base == "" {
		base = "category"
	}
	return base + "-" + timestampDigits(now, 6)
}

// skuPrefix takes the first three letters of the product name, uppercased.
func skuPrefix(name string) string {
	var b strings.Builder
	count := 0
	for _, r := range name {
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		count++
		if count == 3 {
			break
		}
	}
	if count == 0 {
		return "PRD"
	}
	return b.String()
}

// nextNumericCode increments code when it is a plain integer.
func nextNumericCode(code string) (string, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(code), 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(n+1, 10), true
}
