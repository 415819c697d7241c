package domain

import (
	"strconv"
	"strings"
)

// SettingsNamespace prefixes user properties owned by this application.
// A property is stored as "<namespace>:<name>:<value>".
const SettingsNamespace = "com_custodia_addrcrawl"

// User setting names.
const (
	// SettingIncludeShared enables crawling of mountpoints.
	SettingIncludeShared = "contacts_include_shared"

	// SettingIncludeFields lists the contact fields copied into Properties.
	SettingIncludeFields = "contacts_attrs"
)

// DefaultIncludeFields is used when SettingIncludeFields is not set.
var DefaultIncludeFields = []string{"firstName", "lastName"}

// Settings is a read-only view of one user's settings.
type Settings struct {
	values map[string]string
}

// NewSettings builds settings from a name/value map.
func NewSettings(values map[string]string) Settings {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Settings{values: cp}
}

// ParseSettings extracts the properties belonging to namespace.
// Malformed entries and entries of other namespaces are ignored.
func ParseSettings(namespace string, properties []string) Settings {
	values := make(map[string]string)
	for _, prop := range properties {
		parts := strings.SplitN(prop, ":", 3)
		if len(parts) != 3 || parts[0] != namespace {
			continue
		}
		values[parts[1]] = parts[2]
	}
	return Settings{values: values}
}

// FormatSetting returns the stored property form of a setting.
func FormatSetting(namespace, name, value string) string {
	return namespace + ":" + name + ":" + value
}

// Get returns a setting or def when unset.
func (s Settings) Get(name, def string) string {
	if v, ok := s.values[name]; ok {
		return v
	}
	return def
}

// Bool returns a boolean setting. Unparseable values yield def.
func (s Settings) Bool(name string, def bool) bool {
	v, ok := s.values[name]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// Array splits a setting on delim, trimming blanks and dropping empty items.
// def is returned (copied) when the setting is unset.
func (s Settings) Array(name, delim string, def []string) []string {
	v, ok := s.values[name]
	if !ok {
		return append([]string(nil), def...)
	}
	var out []string
	for _, item := range strings.Split(v, delim) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IncludeShared reports whether mountpoints should be followed.
func (s Settings) IncludeShared() bool {
	return s.Bool(SettingIncludeShared, false)
}

// IncludeFields returns the configured property fields.
func (s Settings) IncludeFields() []string {
	fields := s.Array(SettingIncludeFields, ",", DefaultIncludeFields)
	if len(fields) == 0 {
		return append([]string(nil), DefaultIncludeFields...)
	}
	return fields
}

// Values returns a copy of all settings.
func (s Settings) Values() map[string]string {
	cp := make(map[string]string, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}
