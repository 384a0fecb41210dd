package ports

import "github.com/layer-3/verigate/core"

// Codec converts between payloads and opaque tokens using a shared secret
type Codec interface {
	Encode(payload core.Payload) (string, error)
	// Decode returns an error wrapping core.ErrDecode for any malformed or tampered token
	Decode(token string) (core.Payload, error)
}
