package server

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pefman/tower-duel/internal/models"
)

// Codec frames messages for one connection.
type Codec interface {
	Name() string
	// FrameType is the websocket message type the codec writes.
	FrameType() int
	Encode(msg models.WsMsg) ([]byte, error)
	// DecodeEnvelope splits an inbound frame into its type and raw data.
	DecodeEnvelope(frame []byte) (string, []byte, error)
	DecodeData(raw []byte, v any) error
}

// codecByName returns the codec a client asked for; JSON is the default.
func codecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "msgpack":
		return msgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string   { return "json" }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(msg models.WsMsg) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) DecodeEnvelope(frame []byte) (string, []byte, error) {
	var in struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &in); err != nil {
		return "", nil, err
	}
	return in.Type, in.Data, nil
}

func (jsonCodec) DecodeData(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return "msgpack" }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(msg models.WsMsg) ([]byte, error) {
	return msgpack.Marshal(&msg)
}

func (msgpackCodec) DecodeEnvelope(frame []byte) (string, []byte, error) {
	var in struct {
		Type string             `msgpack:"type"`
		Data msgpack.RawMessage `msgpack:"data"`
	}
	if err := msgpack.Unmarshal(frame, &in); err != nil {
		return "", nil, err
	}
	return in.Type, in.Data, nil
}

func (msgpackCodec) DecodeData(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return msgpack.Unmarshal(raw, v)
}
