package prefs

import "strings"

const (
	// KeySeparator joins a prefix and a type tag.
	KeySeparator = "#"
	// TypeValueSeparator joins a type tag and a member key, and separates
	// members inside an index entry.
	TypeValueSeparator = "$"
	// ReservedChars lists every character keys and string values may not
	// contain.
	ReservedChars = KeySeparator + TypeValueSeparator
)

// ValidateKey rejects text containing a reserved character. It applies to
// keys, root keys and string values alike.
func ValidateKey(text string) error {
	if strings.ContainsAny(text, ReservedChars) {
		return &ValidationError{Text: text, Reserved: ReservedChars}
	}
	return nil
}

func indexKey(prefix string, t PreferenceType) string {
	return prefix + KeySeparator + t.String()
}

func memberKey(prefix string, t PreferenceType, key string) string {
	return indexKey(prefix, t) + TypeValueSeparator + key
}

// ChildPrefix returns the encoded prefix of the child stored under key
// below prefix.
func ChildPrefix(prefix, key string) string {
	return memberKey(prefix, TypeChild, key)
}

// NamespacePrefix returns the prefix every key stored under rootKey starts
// with.
func NamespacePrefix(rootKey string) string {
	return rootKey + KeySeparator
}

func joinIndex(keys []string) string {
	return strings.Join(keys, TypeValueSeparator)
}

// splitIndex names the members of a present index entry. An empty value
// names the single member key "".
func splitIndex(value string) []string {
	return strings.Split(value, TypeValueSeparator)
}
