package sqlite

import (
	"database/sql"
	"time"

	"github.com/adrianov/diskadmit/internal/domain"
)

// Upsert inserts or updates a transfer record
func (s *Store) Upsert(t *domain.Transfer) error {
	query := `
		INSERT INTO transfers (
			id, name, download_dir, volume, group_id,
			size_when_done, size_left, added_at, last_activity_at,
			paused_for_disk_space, last_probe_at,
			disk_needed, disk_available, disk_total
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			download_dir = excluded.download_dir,
			volume = excluded.volume,
			group_id = excluded.group_id,
			size_when_done = excluded.size_when_done,
			size_left = excluded.size_left,
			added_at = excluded.added_at,
			last_activity_at = excluded.last_activity_at,
			paused_for_disk_space = excluded.paused_for_disk_space,
			last_probe_at = excluded.last_probe_at,
			disk_needed = excluded.disk_needed,
			disk_available = excluded.disk_available,
			disk_total = excluded.disk_total,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.Exec(query,
		t.ID, t.Name, t.DownloadDir, int64(t.Volume), t.GroupID,
		int64(t.SizeWhenDone), int64(t.SizeLeft),
		nullTime(t.AddedAt), nullTime(t.LastActivityAt),
		t.PausedForDiskSpace, nullTime(t.LastProbeAt),
		int64(t.DiskSpaceNeeded), int64(t.DiskSpaceAvailable), int64(t.DiskSpaceTotal),
	)
	return err
}

// Delete removes a transfer record
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM transfers WHERE id = ?`, id)
	return err
}

// List returns all stored transfers in insertion order
func (s *Store) List() ([]*domain.Transfer, error) {
	query := `
		SELECT id, name, download_dir, volume, group_id,
			   size_when_done, size_left, added_at, last_activity_at,
			   paused_for_disk_space, last_probe_at,
			   disk_needed, disk_available, disk_total
		FROM transfers
		ORDER BY created_at, id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []*domain.Transfer
	for rows.Next() {
		t := &domain.Transfer{}
		var volume, sizeWhenDone, sizeLeft, needed, available, total int64
		var addedAt, activityAt, probeAt sql.NullTime

		if err := rows.Scan(
			&t.ID, &t.Name, &t.DownloadDir, &volume, &t.GroupID,
			&sizeWhenDone, &sizeLeft, &addedAt, &activityAt,
			&t.PausedForDiskSpace, &probeAt,
			&needed, &available, &total,
		); err != nil {
			return nil, err
		}

		t.Volume = domain.VolumeID(volume)
		t.SizeWhenDone = uint64(sizeWhenDone)
		t.SizeLeft = uint64(sizeLeft)
		if addedAt.Valid {
			t.AddedAt = addedAt.Time
		}
		if activityAt.Valid {
			t.LastActivityAt = activityAt.Time
		}
		if probeAt.Valid {
			t.LastProbeAt = probeAt.Time
		}
		t.DiskSpaceNeeded = uint64(needed)
		t.DiskSpaceAvailable = uint64(available)
		t.DiskSpaceTotal = uint64(total)

		transfers = append(transfers, t)
	}

	return transfers, rows.Err()
}

// nullTime maps the zero time to NULL so "never happened" round-trips.
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
