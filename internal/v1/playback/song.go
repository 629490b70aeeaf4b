package playback

// Song is an opaque, client-supplied record. The hub never validates its
// contents beyond the id/title accessors below; all other fields are
// preserved verbatim when a Song is echoed back to clients.
type Song map[string]any

// ID returns the song's "id" field, or "" if absent or not a string.
func (s Song) ID() string {
	return stringField(s, "id")
}

// Title returns the song's "title" field, or "" if absent or not a string.
func (s Song) Title() string {
	return stringField(s, "title")
}

func stringField(s Song, key string) string {
	if s == nil {
		return ""
	}
	v, ok := s[key]
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}
