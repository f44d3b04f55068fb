package riptide

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Request types sent over the WebSocket endpoint.
const (
	RequestCrawl  = "crawl"
	RequestPing   = "ping"
	RequestStatus = "status"
)

// wsEnvelope is a server message. Binary frames carry the same fields
// encoded as msgpack.
type wsEnvelope struct {
	MessageType string         `json:"message_type" msgpack:"message_type"`
	Data        map[string]any `json:"data" msgpack:"data"`
	Timestamp   string         `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
}

// wsRequest is the single client request sent per connection.
type wsRequest struct {
	RequestType string `json:"request_type"`
	Data        any    `json:"data"`
}

// encodeRequest builds the text frame for a request envelope.
func encodeRequest(requestType string, data any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(wsRequest{RequestType: requestType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("riptide: marshal %s request: %w", requestType, err)
	}
	return b, nil
}

// decodeWSMessage turns one WebSocket message into an event. A message that
// cannot be decoded is reported inline unless the policy fails the stream.
func decodeWSMessage(messageType int, data []byte, policy DecodePolicy) (*Event, error) {
	env, err := decodeEnvelope(messageType, data, policy)
	if err == nil && env.MessageType == "" {
		err = fmt.Errorf("message has no message_type")
	}
	if err != nil {
		if policy.failsOn(TransportWebSocket) {
			return nil, &StreamingError{Transport: TransportWebSocket, Op: OpDecode, Err: err}
		}
		raw := string(data)
		if messageType == websocket.BinaryMessage {
			raw = fmt.Sprintf("%x", data)
		}
		return errorEvent(err, truncate(raw, maxErrorBody)), nil
	}
	return newEvent(Kind(env.MessageType), env.Data, env.Timestamp), nil
}

func decodeEnvelope(messageType int, data []byte, policy DecodePolicy) (*wsEnvelope, error) {
	var env wsEnvelope
	if messageType == websocket.BinaryMessage {
		if err := msgpack.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		return &env, nil
	}

	v, err := decodeJSON(data, policy)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("message is %T, not an object", v)
	}
	env.MessageType, _ = m["message_type"].(string)
	env.Timestamp, _ = m["timestamp"].(string)
	if d, ok := m["data"]; ok && d != nil {
		env.Data = asPayload(d)
	}
	return &env, nil
}
