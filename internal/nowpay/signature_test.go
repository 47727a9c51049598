package nowpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignerVerify(t *testing.T) {
	signer := NewSigner("super-secret")

	body := []byte(`{"payment_id":5745459419,"payment_status":"finished","price_amount":10.5,"order_id":"abc"}`)
	sig, err := signer.Sign(body)
	assert.NoError(t, err)
	assert.True(t, signer.Verify(body, sig))

	tests := []struct {
		name string
		body []byte
		sig  string
		ok   bool
	}{
		{
			name: "Key order does not matter",
			body: []byte(`{"order_id":"abc","payment_status":"finished","price_amount":10.5,"payment_id":5745459419}`),
			sig:  sig,
			ok:   true,
		},
		{
			name: "Tampered amount rejected",
			body: []byte(`{"payment_id":5745459419,"payment_status":"finished","price_amount":99999,"order_id":"abc"}`),
			sig:  sig,
			ok:   false,
		},
		{
			name: "Tampered signature rejected",
			body: body,
			sig:  sig[:len(sig)-2] + "00",
			ok:   false,
		},
		{
			name: "Garbage body rejected",
			body: []byte(`not json`),
			sig:  sig,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, signer.Verify(tt.body, tt.sig))
		})
	}
}

func TestSignerWrongSecret(t *testing.T) {
	body := []byte(`{"payment_id":1,"payment_status":"finished"}`)

	sig, err := NewSigner("secret-a").Sign(body)
	assert.NoError(t, err)
	assert.False(t, NewSigner("secret-b").Verify(body, sig))
}

func TestSignerNestedPayload(t *testing.T) {
	signer := NewSigner("super-secret")

	a := []byte(`{"outer":{"b":1,"a":"x"},"id":7}`)
	b := []byte(`{"id":7,"outer":{"a":"x","b":1}}`)

	sigA, err := signer.Sign(a)
	assert.NoError(t, err)
	assert.True(t, signer.Verify(b, sigA))
}
