package redeem

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultCodePrefix = "PRO"
	codeSuffixBytes   = 3
	maxCodeLength     = 64
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func validCode(code string) bool {
	return code != "" && len(code) <= maxCodeLength && codePattern.MatchString(code)
}

// GenerateCode returns prefix-XXXXXX with six random upper-case hex digits.
func GenerateCode(prefix string) (string, error) {
	prefix = NormalizeCode(prefix)
	if prefix == "" {
		prefix = DefaultCodePrefix
	}
	b := make([]byte, codeSuffixBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := prefix + "-" + strings.ToUpper(hex.EncodeToString(b))
	if !validCode(code) {
		return "", ErrInvalidCode
	}
	return code, nil
}

// ParseExpiry reads an expiry window such as "30m", "2h", "1h30m" or a bare
// number of minutes. "", "0", "none" and "never" mean no expiry.
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "0", "none", "never":
		return 0, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, ErrInvalidExpiry
		}
		return time.Duration(n) * time.Minute, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, s)
	}
	if d < 0 || d%time.Minute != 0 {
		return 0, ErrInvalidExpiry
	}
	return d, nil
}
