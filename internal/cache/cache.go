// Package cache is the offline snapshot layer: one logical table per domain
// entity, whole-table writes, and a per-table TTL evaluated lazily at read
// time. An expired snapshot is never returned but keeps occupying storage
// until the next write or an explicit clear.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

type Table string

const (
	TableAgenda   Table = "agenda"
	TablePatients Table = "patients"
	TableRecords  Table = "records"
)

func AllTables() []Table {
	return []Table{TableAgenda, TablePatients, TableRecords}
}

type TTLConfig struct {
	Agenda   time.Duration
	Patients time.Duration
	Records  time.Duration
}

func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Agenda:   30 * time.Minute,
		Patients: 60 * time.Minute,
		Records:  60 * time.Minute,
	}
}

func (c TTLConfig) For(table Table) time.Duration {
	switch table {
	case TablePatients:
		return c.Patients
	case TableRecords:
		return c.Records
	default:
		return c.Agenda
	}
}

// Store is the offline cache port.
//
// CacheData replaces the table's snapshot as one all-or-nothing operation:
// clear, write every item, stamp the timestamp. GetCachedData returns
// (nil, nil) when the snapshot is missing or older than the table's TTL; a
// fresh empty snapshot comes back as an empty non-nil slice. ClearAll empties
// every table unconditionally.
type Store interface {
	CacheData(ctx context.Context, table Table, items []json.RawMessage) error
	GetCachedData(ctx context.Context, table Table) ([]json.RawMessage, error)
	ClearAll(ctx context.Context) error
}
