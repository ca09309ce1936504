package masking

import "strings"

const maskToken = "****"

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 || at == len(trimmed)-1 {
		return maskToken
	}
	return trimmed[:1] + maskToken + trimmed[at:]
}
