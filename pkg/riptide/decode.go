package riptide

import (
	"encoding/json"
	"errors"

	"github.com/kaptinlin/jsonrepair"
)

// decodeJSON decodes one frame body. Under DecodeRepair a syntax error is
// retried once on the repaired text; the original error is returned if the
// repair does not produce valid JSON.
func decodeJSON(data []byte, policy DecodePolicy) (any, error) {
	var v any
	err := json.Unmarshal(data, &v)
	if err == nil {
		return v, nil
	}
	var syntaxErr *json.SyntaxError
	if policy != DecodeRepair || !errors.As(err, &syntaxErr) {
		return nil, err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return nil, err
	}
	if rerr := json.Unmarshal([]byte(fixed), &v); rerr != nil {
		return nil, err
	}
	return v, nil
}

// truncate shortens s for logs and error payloads.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
