package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignCallback computes the callback signature for an order/payment
// pair: hex(HMAC-SHA256(secret, orderRef + "|" + paymentRef)).
func SignCallback(secret, orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a presented signature in constant time.
func VerifySignature(secret, orderRef, paymentRef, presented string) bool {
	expected := SignCallback(secret, orderRef, paymentRef)
	return hmac.Equal([]byte(expected), []byte(presented))
}
