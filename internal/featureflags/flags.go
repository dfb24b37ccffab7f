// Package featureflags evaluates the FEATURE_FLAGS setting, for example
// "ai_insight=on,insight_autosave=25%".
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags understood by the gateway.
const (
	// AIInsight enables the insight action on the detail screen.
	AIInsight = "ai_insight"
	// InsightAutosave saves insights as comments unless the request says otherwise.
	InsightAutosave = "insight_autosave"
)

// defaults apply to known flags absent from the setting.
var defaults = map[string]string{
	AIInsight:       "on",
	InsightAutosave: "off",
}

// Set is a parsed flag list.
type Set struct {
	values map[string]string
}

// Parse reads a comma-separated key=value list. Malformed entries are skipped.
func Parse(raw string) *Set {
	values := make(map[string]string, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key, value = clean(key), clean(value)
		if key == "" || value == "" {
			continue
		}
		values[key] = value
	}
	return &Set{values: values}
}

// Enabled evaluates name for userID. Values are on/off (true/false, 1/0) or
// a percentage rollout such as "25%", which is deterministic per user and
// never includes anonymous viewers.
func (s *Set) Enabled(name string, userID uint) bool {
	if s == nil {
		return false
	}
	value, ok := s.values[clean(name)]
	if !ok {
		return false
	}
	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pct, ok := percentage(value)
	switch {
	case !ok || pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < pct
}

// Snapshot evaluates every flag for userID.
func (s *Set) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(s.values))
	for name := range s.values {
		out[name] = s.Enabled(name, userID)
	}
	return out
}

func percentage(value string) (int, bool) {
	raw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, false
	}
	pct, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clean(name) + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
