package sigblock

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Decode splits a signing block into its records, in block order.
func Decode(block []byte) ([]Record, error) {
	if len(block) < minBlockSize {
		return nil, fmt.Errorf("%w: block of %d bytes is shorter than %d", ErrBlockCorrupt, len(block), minBlockSize)
	}
	if string(block[len(block)-magicLen:]) != Magic {
		return nil, fmt.Errorf("%w: magic mismatch", ErrBlockCorrupt)
	}
	head := binary.LittleEndian.Uint64(block)
	foot := binary.LittleEndian.Uint64(block[len(block)-footerLen:])
	if head != foot || head != uint64(len(block)-sizeFieldLen) {
		return nil, fmt.Errorf("%w: size fields %d/%d do not describe a %d byte block", ErrBlockCorrupt, head, foot, len(block))
	}

	pairs := block[sizeFieldLen : len(block)-footerLen]
	var records []Record
	for n := 1; len(pairs) > 0; n++ {
		if len(pairs) < sizeFieldLen {
			return nil, fmt.Errorf("%w: record #%d: %d bytes left for its length", ErrBlockCorrupt, n, len(pairs))
		}
		length := binary.LittleEndian.Uint64(pairs)
		pairs = pairs[sizeFieldLen:]
		if length < idFieldLen || length > uint64(len(pairs)) {
			return nil, fmt.Errorf("%w: record #%d length %d, %d bytes available", ErrBlockCorrupt, n, length, len(pairs))
		}

		value := make([]byte, length-idFieldLen)
		copy(value, pairs[idFieldLen:length])
		records = append(records, Record{
			ID:    ID(binary.LittleEndian.Uint32(pairs)),
			Value: value,
		})
		pairs = pairs[length:]
	}
	return records, nil
}

// Upsert sets the value of id. An existing record keeps its position; a new
// one is appended. records is not modified.
func Upsert(records []Record, id ID, value []byte) ([]Record, error) {
	if id.Reserved() {
		return nil, fmt.Errorf("%w: %s", ErrReservedID, id)
	}
	if len(value) > maxRecordValue {
		return nil, fmt.Errorf("sigblock: value of %d bytes is too large", len(value))
	}

	out := slices.Clone(records)
	v := slices.Clone(value)
	for i := range out {
		if out[i].ID == id {
			out[i].Value = v
			return out, nil
		}
	}
	return append(out, Record{ID: id, Value: v}), nil
}

// Encode builds a complete signing block from records.
func Encode(records []Record) []byte {
	size := sizeFieldLen + footerLen
	for _, r := range records {
		size += sizeFieldLen + idFieldLen + len(r.Value)
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf, uint64(size-sizeFieldLen))
	pos := sizeFieldLen
	for _, r := range records {
		binary.LittleEndian.PutUint64(buf[pos:], uint64(idFieldLen+len(r.Value)))
		binary.LittleEndian.PutUint32(buf[pos+sizeFieldLen:], uint32(r.ID))
		pos += sizeFieldLen + idFieldLen
		pos += copy(buf[pos:], r.Value)
	}
	binary.LittleEndian.PutUint64(buf[pos:], uint64(size-sizeFieldLen))
	copy(buf[pos+sizeFieldLen:], Magic)
	return buf
}
