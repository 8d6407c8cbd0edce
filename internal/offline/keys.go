package offline

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	namespace = "saldo"
	version   = "v1"
)

// Purpose identifies what a user-scoped cache entry holds.
type Purpose string

const (
	PurposeMonth   Purpose = "month"
	PurposeTabs    Purpose = "tabs"
	PurposeSession Purpose = "session"
	PurposePending Purpose = "pending"

	purposePref = "pref"
)

func (p Purpose) valid() bool {
	switch p {
	case PurposeMonth, PurposeTabs, PurposeSession, PurposePending:
		return true
	}
	return false
}

// Key is the decoded form of a user-scoped cache key.
type Key struct {
	Purpose Purpose
	UserID  string
	Year    int
	Month   int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%d/%d",
		namespace, version, k.Purpose, url.PathEscape(k.UserID), k.Year, k.Month)
}

func prefKey(name string) string {
	return namespace + "/" + version + "/" + purposePref + "/" + url.PathEscape(name)
}

// ParseKey decodes a user-scoped key. Preference keys and keys written by
// anything else are reported as not ok.
func ParseKey(s string) (Key, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 6 || parts[0] != namespace || parts[1] != version {
		return Key{}, false
	}
	p := Purpose(parts[2])
	if !p.valid() {
		return Key{}, false
	}
	user, err := url.PathUnescape(parts[3])
	if err != nil {
		return Key{}, false
	}
	year, err := strconv.Atoi(parts[4])
	if err != nil {
		return Key{}, false
	}
	month, err := strconv.Atoi(parts[5])
	if err != nil || month < 1 || month > 12 {
		return Key{}, false
	}
	return Key{Purpose: p, UserID: user, Year: year, Month: month}, true
}
