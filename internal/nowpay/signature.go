package nowpay

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
)

// Signer verifies provider notification signatures. The provider signs the
// canonical form of the body: the same JSON with object keys sorted at every
// level.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(body []byte) (string, error) {
	canonical, err := canonicalize(body)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify compares in constant time. An unparseable body verifies as false.
func (s *Signer) Verify(body []byte, signature string) bool {
	want, err := s.Sign(body)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(signature))
}

// canonicalize re-serializes the payload. Marshal emits map keys sorted, and
// UseNumber keeps numeric literals byte-identical to the original.
func canonicalize(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return json.Marshal(payload)
}
