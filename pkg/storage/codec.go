package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/holiman/uint256"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

func timeKey(t uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], t)
	return k[:]
}

func fromWord(w [32]byte) fixedpoint.FixedPoint {
	return fixedpoint.FromRaw(new(uint256.Int).SetBytes(w[:]))
}
