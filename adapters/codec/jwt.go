package codec

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

// JWTIssuer is the iss claim of tokens produced by JWTCodec
const JWTIssuer = "verigate"

// PayloadClaims carries the token payload as JWT claims
type PayloadClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sessionId"`
	SiteKey   string `json:"siteKey"`
	Timestamp int64  `json:"timestamp"`
	UserAgent string `json:"userAgent"`
	Challenge string `json:"challenge"`
}

// JWTCodec signs payloads as HS256 JWTs. Claims are readable by anyone holding the token.
type JWTCodec struct {
	key []byte
}

// NewJWT creates an HS256 codec keyed by secret
func NewJWT(secret string) (ports.Codec, error) {
	if secret == "" {
		return nil, core.ErrInvalidSecret
	}
	return &JWTCodec{key: []byte(secret)}, nil
}

// Encode signs the payload
func (j *JWTCodec) Encode(payload core.Payload) (string, error) {
	claims := PayloadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: JWTIssuer,
		},
		SessionID: payload.SessionID,
		SiteKey:   payload.SiteKey,
		Timestamp: payload.Timestamp,
		UserAgent: payload.UserAgent,
		Challenge: payload.Challenge,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Decode verifies the signature and returns the payload.
// Expiry is left to the verifier, so no exp claim is issued or checked here.
func (j *JWTCodec) Decode(tokenStr string) (core.Payload, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &PayloadClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(JWTIssuer))

	if err != nil {
		return core.Payload{}, decodeError("failed to parse token: %v", err)
	}

	if !token.Valid {
		return core.Payload{}, decodeError("invalid token")
	}

	claims, ok := token.Claims.(*PayloadClaims)
	if !ok {
		return core.Payload{}, decodeError("invalid claims type")
	}

	return core.Payload{
		SessionID: claims.SessionID,
		SiteKey:   claims.SiteKey,
		Timestamp: claims.Timestamp,
		UserAgent: claims.UserAgent,
		Challenge: claims.Challenge,
	}, nil
}
