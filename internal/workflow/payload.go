package workflow

import "encoding/json"

// Хелперы извлечения полей из непрозрачного action payload.
// Payload приходит из JSON, поэтому числа обычно лежат как float64;
// после прохода через доменный код возможны и целочисленные типы.
// Отсутствующее или нечисловое поле дает нулевое значение — решение
// "валидно или no-op" принимает хендлер.

func payloadInt64(p map[string]interface{}, key string) int64 {
	if p == nil {
		return 0
	}
	return asInt64(p[key])
}

func payloadInt64Slice(p map[string]interface{}, key string) []int64 {
	if p == nil {
		return nil
	}
	raw, ok := p[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		if id := asInt64(v); id > 0 {
			out = append(out, id)
		}
	}
	return out
}

func payloadMap(p map[string]interface{}, key string) map[string]interface{} {
	if p == nil {
		return nil
	}
	m, _ := p[key].(map[string]interface{})
	return m
}

func payloadString(p map[string]interface{}, key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
