package state

import (
	"fmt"
	"io"

	"github.com/alphabill-org/alphabill-exchange/cbor"
	"github.com/alphabill-org/alphabill-exchange/types"
)

const (
	snapshotTag     cbor.Tag = 1099
	snapshotVersion          = 1
)

type (
	snapshot struct {
		_       struct{} `cbor:",toarray"`
		Version uint32
		Units   []*unitRecord
	}

	unitRecord struct {
		_    struct{} `cbor:",toarray"`
		ID   types.UnitID
		Data cbor.RawCBOR
	}
)

// Save writes CBOR encoded snapshot of all the units into w.
func (s *MemStore) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{Version: snapshotVersion}
	for _, id := range s.sortedIDs() {
		data, err := cbor.Marshal(s.units[string(id)])
		if err != nil {
			return fmt.Errorf("encoding unit %s: %w", id, err)
		}
		snap.Units = append(snap.Units, &unitRecord{ID: id, Data: data})
	}
	buf, err := cbor.MarshalTaggedValue(snapshotTag, snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Load reads snapshot written by Save and returns store containing the units.
func Load(r io.Reader) (*MemStore, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap snapshot
	if err := cbor.UnmarshalTaggedValue(snapshotTag, buf, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	s := NewMemStore()
	for _, u := range snap.Units {
		data, err := NewUnitData(u.ID)
		if err != nil {
			return nil, err
		}
		if err := cbor.Unmarshal(u.Data, data); err != nil {
			return nil, fmt.Errorf("decoding unit %s: %w", u.ID, err)
		}
		s.units[string(u.ID)] = data
	}
	return s, nil
}
