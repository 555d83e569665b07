package dtable

import "github.com/calvinalkan/dynrecord/internal/layout"

// Storage is the thin typed wrapper layered over Table: it composes the
// raw Table primitives into record-level create/update/delete semantics,
// adding no durability or ordering contract beyond the Table's own.
type Storage struct {
	table *Table
}

// NewStorage wraps an already-open Table.
func NewStorage(t *Table) *Storage {
	return &Storage{table: t}
}

// Table returns the underlying Table, for callers that need raw access
// (e.g. HeaderData or Count) alongside the typed wrapper.
func (s *Storage) Table() *Table {
	return s.table
}

// CreateRecord allocates, writes, then commits a new record. Any
// failure in the chain leaves no visible state (the allocation never
// reaches Stored) and returns Invalid.
func (s *Storage) CreateRecord(data []byte) (uint64, error) {
	index, err := s.table.AllocRecord(uint64(len(data)))
	if err != nil {
		return Invalid, err
	}
	if index == Invalid {
		return Invalid, nil
	}

	if !s.table.WriteRecordData(index, data) {
		return Invalid, nil
	}

	if !s.table.CommitRecord(index) {
		return Invalid, nil
	}

	return index, nil
}

// DeleteRecord delegates to Table.DeleteRecord.
func (s *Storage) DeleteRecord(index uint64) bool {
	return s.table.DeleteRecord(index)
}

// GetRecord returns the validated byte range for index, or nil if it is
// not Stored or fails its CRC check.
func (s *Storage) GetRecord(index uint64) []byte {
	return s.table.GetRecordWithValidation(index)
}

// UpdateRecord writes in place when the new bytes fit in the existing
// data_size, otherwise deletes and recreates the record. The
// returned index may differ from the input index in the grow case.
func (s *Storage) UpdateRecord(index uint64, data []byte) (uint64, error) {
	if index >= s.table.maxRecords {
		return Invalid, nil
	}

	d := s.table.descs.At(index)
	if d.State() != layout.StateStored {
		return Invalid, nil
	}

	if uint64(len(data)) <= d.DataSize() {
		if !s.table.WriteRecordData(index, data) {
			return Invalid, nil
		}
		return index, nil
	}

	if !s.table.DeleteRecord(index) {
		return Invalid, nil
	}

	return s.CreateRecord(data)
}
