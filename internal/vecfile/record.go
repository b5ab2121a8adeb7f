package vecfile

import (
	"encoding/binary"
	"math"
)

// EncodeRecord writes one record (id slot + D normalized components) into
// out, which must be exactly RecSize(len(vec)) bytes long.
//
// The id slot holds the ID's raw 32-bit pattern. Earlier vector file
// formats stored it as a reinterpreted float32, which for a plain
// store-and-reload round trip is bit-identical to writing the integer
// directly — so we write the bits directly rather than routing through
// float32 arithmetic that was never numeric to begin with.
func EncodeRecord(id int32, vec []float32, out []byte) {
	binary.LittleEndian.PutUint32(out[0:4], uint32(id))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[4+i*4:8+i*4], math.Float32bits(v))
	}
}

// DecodeID extracts the metadata ID from a record's leading 4 bytes.
func DecodeID(rec []byte) int32 {
	return int32(binary.LittleEndian.Uint32(rec[0:4]))
}

// DecodeVector extracts a copy of the D trailing float32 components of a
// record.
func DecodeVector(rec []byte, d int) []float32 {
	out := make([]float32, d)
	for i := 0; i < d; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(rec[4+i*4 : 8+i*4]))
	}
	return out
}

// VectorBytes returns the sub-slice of rec holding the raw component
// bytes, without copying — valid only while the backing buffer is not
// reused.
func VectorBytes(rec []byte) []byte { return rec[4:] }
