package cache

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes domain values into the byte payloads a KeyValue stores.
// The encoding must round-trip an object graph, including eagerly loaded
// relations, without touching the database on decode.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, dest any) error
}

type msgpackCodec struct{}

// NewMsgpackCodec returns the default codec. MessagePack is compact, fast,
// and handles nested structs and slices without schema registration.
func NewMsgpackCodec() Codec {
	return msgpackCodec{}
}

func (msgpackCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Decode(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}
