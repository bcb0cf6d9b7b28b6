package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "***"

// Keys are compared after lowercasing and dropping '-' and '_'. Credential
// keys match as substrings ("client_secret", "x-access-token"); personal
// data keys from lost & found posts match exactly.
var (
	credentialKeys = []string{"password", "token", "secret", "authorization", "cookie", "apikey"}
	personalKeys   = map[string]struct{}{
		"contactinfo": {},
		"studentname": {},
		"email":       {},
		"phone":       {},
	}
)

// SanitizeFields replaces credential and personal-data values with "***",
// descending into maps and slices such as a decoded request body.
func SanitizeFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}

	out := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if isRedactedKey(field.Key) {
			out = append(out, zap.String(field.Key, redacted))
			continue
		}
		if !isComposite(field.Type) {
			out = append(out, field)
			continue
		}

		enc := zapcore.NewMapObjectEncoder()
		field.AddTo(enc)
		value, ok := enc.Fields[field.Key]
		if !ok {
			out = append(out, field)
			continue
		}
		out = append(out, zap.Any(field.Key, redactValue(value)))
	}
	return out
}

func isComposite(t zapcore.FieldType) bool {
	switch t {
	case zapcore.ReflectType, zapcore.ObjectMarshalerType, zapcore.ArrayMarshalerType, zapcore.InlineMarshalerType:
		return true
	default:
		return false
	}
}

func redactValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			if isRedactedKey(k) {
				out[k] = redacted
				continue
			}
			out[k] = redactValue(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	default:
		return typed
	}
}

func isRedactedKey(key string) bool {
	normalized := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	if normalized == "" {
		return false
	}
	if _, ok := personalKeys[normalized]; ok {
		return true
	}
	for _, token := range credentialKeys {
		if strings.Contains(normalized, token) {
			return true
		}
	}
	return false
}
