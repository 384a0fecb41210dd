// Package codec converts token payloads to opaque strings and back.
//
// All codecs are symmetric: the issuer and the verifier are configured with the same secret.
// Decoding never returns a partial payload; every failure wraps core.ErrDecode.
package codec

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

// Kind names a codec implementation
type Kind string

const (
	KindSealed Kind = "sealed"
	KindLegacy Kind = "legacy"
	KindJWT    Kind = "jwt"
)

// New builds the codec of the given kind keyed by secret
func New(kind Kind, secret string) (ports.Codec, error) {
	switch kind {
	case KindSealed, "":
		return NewSealed(secret)
	case KindLegacy:
		return NewLegacy(secret)
	case KindJWT:
		return NewJWT(secret)
	default:
		return nil, fmt.Errorf("unknown token codec %q: %w", kind, core.ErrInvalidInput)
	}
}

func decodeError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrDecode, fmt.Sprintf(format, args...))
}

func marshalPayload(p core.Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

func unmarshalPayload(data []byte) (core.Payload, error) {
	if !utf8.Valid(data) {
		return core.Payload{}, decodeError("payload is not valid utf-8")
	}
	var p core.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return core.Payload{}, decodeError("payload is not valid json: %v", err)
	}
	return p, nil
}
