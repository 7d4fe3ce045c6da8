package assetid

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		kind     Kind
		maturity uint64
	}{
		{LP, 0},
		{Long, 1700000000},
		{Short, 1700000000},
		{WithdrawalShare, 0},
	}
	for _, tc := range cases {
		id, err := Encode(tc.kind, tc.maturity)
		if err != nil {
			t.Fatalf("encode(%s, %d): %v", tc.kind, tc.maturity, err)
		}
		kind, maturity, err := Decode(id)
		if err != nil {
			t.Fatalf("decode(%s): %v", id.Hex(), err)
		}
		if kind != tc.kind || maturity != tc.maturity {
			t.Errorf("round trip gave (%s, %d), want (%s, %d)", kind, maturity, tc.kind, tc.maturity)
		}
	}
}

func TestEncodeRejectsBadShapes(t *testing.T) {
	if _, err := Encode(LP, 1700000000); !errors.Is(err, ErrInvalidAssetID) {
		t.Errorf("LP with maturity: got %v", err)
	}
	if _, err := Encode(Long, 0); !errors.Is(err, ErrInvalidAssetID) {
		t.Errorf("Long without maturity: got %v", err)
	}
	if _, err := Encode(Kind(200), 0); !errors.Is(err, ErrInvalidAssetID) {
		t.Errorf("unknown kind: got %v", err)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	id := new(uint256.Int).Lsh(uint256.NewInt(99), 248)
	if _, _, err := Decode(id); !errors.Is(err, ErrInvalidAssetID) {
		t.Errorf("unknown kind byte: got %v", err)
	}
}

func TestDecodeRejectsCorruptBits(t *testing.T) {
	id := MustEncode(Long, 1700000000)
	// Set a bit between the maturity field and the kind byte.
	corrupt := new(uint256.Int).Or(id, new(uint256.Int).Lsh(uint256.NewInt(1), 100))
	if _, _, err := Decode(corrupt); !errors.Is(err, ErrInvalidAssetID) {
		t.Errorf("corrupt bits: got %v", err)
	}
}

func TestLongShortDistinct(t *testing.T) {
	long := MustEncode(Long, 1700000000)
	short := MustEncode(Short, 1700000000)
	if long.Eq(short) {
		t.Error("long and short ids collide for equal maturity")
	}
}
