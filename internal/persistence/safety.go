package persistence

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrBigEndian is returned when running on big-endian systems.
	ErrBigEndian = errors.New("persistence: big-endian systems are not supported")

	// ErrUnalignedAccess is returned when a mapped region is not aligned for its element type.
	ErrUnalignedAccess = errors.New("persistence: unaligned memory access")
)

// checkPlatform rejects platforms whose native layout differs from the file format.
func checkPlatform() error {
	if !isLittleEndian() {
		return ErrBigEndian
	}
	return nil
}

func isLittleEndian() bool {
	var test uint16 = 0x0001
	return *(*byte)(unsafe.Pointer(&test)) == 1
}

// float32View reinterprets b as float32 values without copying.
func float32View(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a float32 multiple", ErrCorrupt, len(b))
	}
	if ptr := uintptr(unsafe.Pointer(&b[0])); ptr%4 != 0 {
		return nil, fmt.Errorf("%w: float32 region at 0x%x", ErrUnalignedAccess, ptr)
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4), nil
}

// uint64View reinterprets b as uint64 values without copying.
func uint64View(b []byte) ([]uint64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a uint64 multiple", ErrCorrupt, len(b))
	}
	if ptr := uintptr(unsafe.Pointer(&b[0])); ptr%8 != 0 {
		return nil, fmt.Errorf("%w: uint64 region at 0x%x", ErrUnalignedAccess, ptr)
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8), nil
}

// float32Bytes returns the raw bytes of v without copying.
func float32Bytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}
