package identity

// Session is the in-memory representation of the currently authenticated identity.
// Holders receive it by reference and must treat it as read-only; a change of
// identity always produces a new Session value.
type Session struct {
	IdentityID  string         `json:"identity_id"`
	Email       string         `json:"email,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Token       string         `json:"-"` // Provider credential, opaque to callers
}

// Metadata keys written by sign-up. Both spellings are read back for older accounts.
const (
	MetadataFullName      = "full_name"
	MetadataFullNameCamel = "fullName"
)

// DisplayNameFrom picks the display name out of provider metadata.
func DisplayNameFrom(metadata map[string]any) string {
	for _, key := range []string{MetadataFullName, MetadataFullNameCamel} {
		if name, ok := metadata[key].(string); ok && name != "" {
			return name
		}
	}
	return ""
}

// SameIdentity reports whether a and b describe the same signed-in identity.
// Two nil sessions are the same (both anonymous).
func SameIdentity(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IdentityID == b.IdentityID
}
