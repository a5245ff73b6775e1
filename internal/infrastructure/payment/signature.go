package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign はプロバイダー参照2つから期待署名を計算する
// 署名は共有シークレットによる HMAC-SHA256("orderRef|paymentRef") の16進表現
func Sign(secret, providerOrderRef, providerPaymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(providerOrderRef + "|" + providerPaymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature は受信した署名を検証する
// 比較は定数時間で行う
func VerifySignature(secret, providerOrderRef, providerPaymentRef, signature string) bool {
	expected := Sign(secret, providerOrderRef, providerPaymentRef)
	return hmac.Equal([]byte(expected), []byte(signature))
}
