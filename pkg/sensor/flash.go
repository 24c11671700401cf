package sensor

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// flashMagic marks a written calibration record.
const flashMagic uint32 = 0xFEEDF10A

// BlockDevice is the part of a flash block device the calibration record
// needs. machine.Flash satisfies it on boards with a flash data area.
type BlockDevice interface {
	io.ReaderAt
	io.WriterAt
	WriteBlockSize() int64
	EraseBlocks(start, length int64) error
}

// FlashStore keeps the calibration factor in the first erase block of a
// block device. It holds CalibrationKey only.
type FlashStore struct {
	dev BlockDevice
}

var _ CalibrationStore = FlashStore{}

// NewFlashStore creates a store on dev.
func NewFlashStore(dev BlockDevice) FlashStore {
	return FlashStore{dev: dev}
}

// Float returns the stored factor. An erased or never written block reads as not set.
func (s FlashStore) Float(key string) (float32, bool, error) {
	if key != CalibrationKey {
		return 0, false, fmt.Errorf("flash store holds %q only, not %q", CalibrationKey, key)
	}

	var rec [8]byte
	if _, err := s.dev.ReadAt(rec[:], 0); err != nil {
		return 0, false, err
	}
	if binary.LittleEndian.Uint32(rec[:4]) != flashMagic {
		return 0, false, nil
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(rec[4:])), true, nil
}

// SetFloat erases the record block and writes v.
func (s FlashStore) SetFloat(key string, v float32) error {
	if key != CalibrationKey {
		return fmt.Errorf("flash store holds %q only, not %q", CalibrationKey, key)
	}

	// Writes must cover whole write blocks
	n := int64(8)
	if wb := s.dev.WriteBlockSize(); wb > 0 {
		n = (n + wb - 1) / wb * wb
	}
	rec := make([]byte, n)
	for i := range rec {
		rec[i] = 0xFF
	}
	binary.LittleEndian.PutUint32(rec[:4], flashMagic)
	binary.LittleEndian.PutUint32(rec[4:8], math.Float32bits(v))

	if err := s.dev.EraseBlocks(0, 1); err != nil {
		return fmt.Errorf("failed to erase calibration block: %w", err)
	}
	if _, err := s.dev.WriteAt(rec, 0); err != nil {
		return fmt.Errorf("failed to write calibration block: %w", err)
	}
	return nil
}
