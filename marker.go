package domwire

import (
	"fmt"

	"github.com/mlev/domwire/lib/encoding"
)

// MarkerField is the form field carrying the origin marker on every
// submission.
const MarkerField = "origin_check"

// Marker signs the current page URL into a compact anti-automation
// token appended to outgoing form data. The token is visible but
// tamper-proof; server-side collaborators verify it with the shared
// key.
type Marker struct {
	enc *encoding.Encoder
}

// NewMarker creates a marker signer from a shared key.
func NewMarker(key []byte) (*Marker, error) {
	enc, err := encoding.NewEncoder(key)
	if err != nil {
		return nil, err
	}
	return &Marker{enc: enc}, nil
}

// Token signs pageURL into a marker token.
func (m *Marker) Token(pageURL string) (string, error) {
	return m.enc.Encode(map[string]any{"url": pageURL}, false)
}

// Verify checks a token's signature and returns the page URL it
// carries. Tampered or malformed tokens yield ErrInvalidMarker.
func (m *Marker) Verify(token string) (string, error) {
	payload, err := m.enc.Decode(token, false)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMarker, err)
	}
	u, ok := payload["url"].(string)
	if !ok {
		return "", ErrInvalidMarker
	}
	return u, nil
}
