package cache

import "fmt"

func RateLimitKey(principal string) string {
	return fmt.Sprintf("ratelimit:%s", principal)
}

// WebhookProcessedKey marks a gateway payment id whose capture was already reconciled.
func WebhookProcessedKey(paymentID string) string {
	return fmt.Sprintf("webhook:processed:%s", paymentID)
}
