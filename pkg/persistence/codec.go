package persistence

import (
	"fmt"
	"strconv"
)

// KeyCodec converts node ids to and from the strings stored in logs and snapshots.
type KeyCodec[K comparable] interface {
	Encode(key K) string
	Decode(value string) (K, error)
}

type StringCodec struct{}

func (StringCodec) Encode(key string) string {
	return key
}

func (StringCodec) Decode(value string) (string, error) {
	return value, nil
}

type IntCodec struct{}

func (IntCodec) Encode(key int) string {
	return strconv.Itoa(key)
}

func (IntCodec) Decode(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid int node id %q: %w", value, err)
	}

	return n, nil
}
