package conditions

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Rules is the parsed form of a fragment's serialized conditions. Every
// family is independently optional; an empty slice is the same as absent.
type Rules struct {
	PageTypes    []string `json:"page_type,omitempty"`
	ContentTypes []string `json:"content_type,omitempty"`
	UserRoles    []string `json:"user_role,omitempty"`
	AuthStatus   string   `json:"auth_status,omitempty"`
	DeviceTypes  []string `json:"device_type,omitempty"`
	URLPatterns  []string `json:"url_pattern,omitempty"`
	DateFrom     string   `json:"date_from,omitempty"`
	DateTo       string   `json:"date_to,omitempty"`
}

// Empty reports whether no family is present.
func (r Rules) Empty() bool {
	return len(r.PageTypes) == 0 &&
		len(r.ContentTypes) == 0 &&
		len(r.UserRoles) == 0 &&
		r.AuthStatus == "" &&
		len(r.DeviceTypes) == 0 &&
		len(r.URLPatterns) == 0 &&
		r.DateFrom == "" &&
		r.DateTo == ""
}

// Encode serializes the rules for storage.
func (r Rules) Encode() (string, error) {
	data, err := sonic.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseRules decodes a serialized rule set. ok is false when the payload is
// present but unparsable; callers treat that as "no conditions" (fail-open).
func ParseRules(raw string) (Rules, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Rules{}, true
	}

	var r Rules
	if err := sonic.UnmarshalString(raw, &r); err != nil {
		return Rules{}, false
	}
	return r, true
}

// Accepted timestamp layouts for date_from/date_to, checked in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseRuleTime(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
