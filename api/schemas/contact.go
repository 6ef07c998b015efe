package schemas

import "fmt"

// -- Contact Schemas --

// Contact is one input row. It is immutable once loaded; Row is the 1-based
// data row in the source table so outcomes can be correlated with the input.
type Contact struct {
	Row        int               `json:"row"`
	Name       string            `json:"name"`
	RawNumber  string            `json:"raw_number"`
	Normalized NormalizedContact `json:"normalized"`
}

// NormalizedContact holds the values derived from a Contact before it enters
// the delivery engine.
type NormalizedContact struct {
	E164Number   string `json:"e164_number"`
	GreetingName string `json:"greeting_name"`
}

// Number returns the normalized destination, falling back to the raw value.
func (c Contact) Number() string {
	if c.Normalized.E164Number != "" {
		return c.Normalized.E164Number
	}
	return c.RawNumber
}

// -- Message Intent Schemas --

// IntentKind selects the send path used for a contact.
type IntentKind string

const (
	IntentText  IntentKind = "text"
	IntentMedia IntentKind = "media"
)

// String returns the string representation of the IntentKind.
func (k IntentKind) String() string {
	return string(k)
}

// IsValid reports whether k is a known kind.
func (k IntentKind) IsValid() bool {
	switch k {
	case IntentText, IntentMedia:
		return true
	}
	return false
}

// ParseIntentKind converts a configuration value into an IntentKind.
func ParseIntentKind(s string) (IntentKind, error) {
	k := IntentKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown message kind %q", s)
	}
	return k, nil
}

// MessageIntent is what should be delivered to one contact. MediaPath is only
// meaningful for IntentMedia, where Body becomes the caption.
type MessageIntent struct {
	Kind      IntentKind `json:"kind"`
	Body      string     `json:"body"`
	MediaPath string     `json:"media_path,omitempty"`
}

// TextIntent builds a plain text intent.
func TextIntent(body string) MessageIntent {
	return MessageIntent{Kind: IntentText, Body: body}
}

// MediaIntent builds a media intent with an optional caption.
func MediaIntent(path, caption string) MessageIntent {
	return MessageIntent{Kind: IntentMedia, Body: caption, MediaPath: path}
}
