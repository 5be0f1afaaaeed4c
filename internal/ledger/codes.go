package ledger

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeFunc produces a human-readable redemption code.
type CodeFunc func() string

const codePrefix = "REC"

// Code formats accepted by ParseCodeFormat.
const (
	CodeFormatRandom = "random"
	CodeFormatLegacy = "legacy"
)

// RandomCode returns REC followed by 12 uppercase hex digits taken from a
// random UUID (48 bits).
func RandomCode() string {
	u := uuid.New()
	return codePrefix + strings.ToUpper(hex.EncodeToString(u[:6]))
}

// LegacyCode returns a CodeFunc producing REC plus the last six digits of
// the millisecond clock. Codes repeat every ~16.7 minutes and collide for
// requests in the same millisecond; the store's unique index rejects the
// second of a colliding pair.
func LegacyCode(now func() time.Time) CodeFunc {
	return func() string {
		ms := strconv.FormatInt(now().UnixMilli(), 10)
		if len(ms) < 6 {
			ms = strings.Repeat("0", 6-len(ms)) + ms
		}
		return codePrefix + ms[len(ms)-6:]
	}
}

// ParseCodeFormat resolves a configured format name to a generator.
func ParseCodeFormat(name string, now func() time.Time) (CodeFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodeFormatRandom:
		return RandomCode, nil
	case CodeFormatLegacy:
		return LegacyCode(now), nil
	}
	return nil, fmt.Errorf("unknown redemption code format %q", name)
}
