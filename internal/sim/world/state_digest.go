package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes everything that decides how the world evolves: the generator parameters,
// modified chunks, pending updates and the random source. Two worlds with equal digests step
// identically.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, w.cfg.Seed)
	digestWriteI64(h, &tmp, int64(w.cfg.Height))
	digestWriteI64(h, &tmp, int64(w.cfg.BoundaryR))
	digestWriteI64(h, &tmp, int64(w.cfg.FloorY))
	digestWriteI64(h, &tmp, int64(w.cfg.TallGrassPermille))

	keys := w.chunks.ModifiedChunkKeys()
	digestWriteU64(h, &tmp, uint64(len(keys)))
	for _, k := range keys {
		digestWriteI64(h, &tmp, int64(k.CX))
		digestWriteI64(h, &tmp, int64(k.CZ))
		d := w.chunks.Chunks[k].Digest()
		h.Write(d[:])
	}

	visits := w.sched.sorted()
	digestWriteU64(h, &tmp, uint64(len(visits)))
	for _, v := range visits {
		digestWritePos(h, &tmp, v.pos)
		digestWriteU64(h, &tmp, v.tick)
	}

	digestWriteU64(h, &tmp, uint64(len(w.neighbours)))
	for _, n := range w.neighbours {
		digestWritePos(h, &tmp, n)
	}

	rng, _ := w.rngSrc.MarshalBinary()
	h.Write(rng)

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWritePos(h hashWriter, tmp *[8]byte, p [3]int) {
	for _, c := range p {
		digestWriteI64(h, tmp, int64(c))
	}
}
