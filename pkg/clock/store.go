package clock

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const (
	magicAddr  = 0 // 4 bytes
	offsetAddr = 4 // 8 bytes, milliseconds

	// RegionSize is the size of the retained block used by the clock.
	RegionSize = 12
)

// State is the content of the retained region.
type State struct {
	Magic  uint32
	Offset uint64 // Milliseconds
}

// Store reads and writes the retained region. It is touched only from
// Clock.Setup and Clock.PrepareForSleep.
type Store interface {
	Load() (State, error)
	Save(State) error
}

func decode(b []byte) State {
	return State{
		Magic:  binary.LittleEndian.Uint32(b[magicAddr:]),
		Offset: binary.LittleEndian.Uint64(b[offsetAddr:]),
	}
}

func encode(b []byte, s State) {
	binary.LittleEndian.PutUint32(b[magicAddr:], s.Magic)
	binary.LittleEndian.PutUint64(b[offsetAddr:], s.Offset)
}

// MemoryStore keeps the retained region in RAM. On the MCU it stands in for
// RTC memory; on the host it is used in tests.
type MemoryStore struct {
	region [RegionSize]byte
}

var _ Store = (*MemoryStore)(nil)

// Load decodes the region.
func (m *MemoryStore) Load() (State, error) {
	return decode(m.region[:]), nil
}

// Save encodes s into the region.
func (m *MemoryStore) Save(s State) error {
	encode(m.region[:], s)
	return nil
}

// Wipe zeroes the region, as after a power loss.
func (m *MemoryStore) Wipe() {
	m.region = [RegionSize]byte{}
}

// FileStore keeps the retained region in a file so a host process can
// simulate deep sleep by exiting and restarting.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the region. A missing file reads as a zeroed region.
func (f *FileStore) Load() (State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("failed to read retained state: %w", err)
	}

	// A short or corrupted file is treated like garbage RTC memory.
	var region [RegionSize]byte
	copy(region[:], data)
	return decode(region[:]), nil
}

// Save writes the region.
func (f *FileStore) Save(s State) error {
	var region [RegionSize]byte
	encode(region[:], s)

	if err := os.WriteFile(f.path, region[:], 0644); err != nil {
		return fmt.Errorf("failed to write retained state: %w", err)
	}
	return nil
}

// Remove deletes the backing file, as after a power loss.
func (f *FileStore) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove retained state: %w", err)
	}
	return nil
}
