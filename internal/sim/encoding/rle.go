package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// CellEncoding names the chunk voxel encoding produced by EncodeCells.
const CellEncoding = "RLE_CELL16_YZX"

// MaxCellBlockID is the largest palette id that fits a packed cell.
const MaxCellBlockID = 0x0fff

// EncodeRLE encodes a sequence of values into base64(varint pairs).
// The pairs are (value, run_len) repeated.
func EncodeRLE(vals []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(vals) {
		v := vals[i]
		run := 1
		for j := i + 1; j < len(vals) && vals[j] == v && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. limit bounds the decoded length; pass 0 for no bound.
func DecodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFF {
			return nil, fmt.Errorf("value too large: %d", v)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("decoded length exceeds %d", limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(v))
		}
	}
	return out, nil
}

// EncodeCells packs parallel block and meta arrays as id<<4|meta and run-length encodes them.
func EncodeCells(blocks []uint16, meta []uint8) (string, error) {
	if len(blocks) != len(meta) {
		return "", fmt.Errorf("blocks/meta length mismatch: %d != %d", len(blocks), len(meta))
	}
	packed := make([]uint16, len(blocks))
	for i, b := range blocks {
		if b > MaxCellBlockID {
			return "", fmt.Errorf("block id %d does not fit a packed cell", b)
		}
		packed[i] = b<<4 | uint16(meta[i]&0x0f)
	}
	return EncodeRLE(packed), nil
}

// DecodeCells reverses EncodeCells. want is the exact number of cells expected.
func DecodeCells(b64 string, want int) ([]uint16, []uint8, error) {
	packed, err := DecodeRLE(b64, want)
	if err != nil {
		return nil, nil, err
	}
	if len(packed) != want {
		return nil, nil, fmt.Errorf("decoded %d cells, want %d", len(packed), want)
	}
	blocks := make([]uint16, want)
	meta := make([]uint8, want)
	for i, p := range packed {
		blocks[i] = p >> 4
		meta[i] = uint8(p & 0x0f)
	}
	return blocks, meta, nil
}
