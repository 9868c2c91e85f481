package panel

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelopeKeys перечисляет ключи, под которыми бэкенд заворачивает списки.
var envelopeKeys = []string{"data", "notifications", "currencies"}

// decodeList приводит ответ бэкенда к списку. Допускаются голый массив
// и объект, хранящий массив под одним из ключей envelopeKeys.
// Все списочные ответы проходят только через эту функцию.
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return list, nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if raw, ok := env["success"]; ok {
		var success bool
		if err := json.Unmarshal(raw, &success); err == nil && !success {
			return nil, ErrUnsuccessful
		}
	}

	for _, key := range envelopeKeys {
		raw, ok := env[key]
		if !ok {
			continue
		}
		list := []T{}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return list, nil
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return list, nil
	}

	return nil, ErrUnexpectedEnvelope
}
