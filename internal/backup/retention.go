package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RetentionPolicy caps how many snapshots survive in each age tier.
// Snapshots are tiered by age: under a day, under a week, under a month,
// under a year. Anything older than a year is always pruned.
type RetentionPolicy struct {
	Hourly  int // snapshots under 24 hours old (default: 24)
	Daily   int // snapshots between 1 and 7 days old (default: 7)
	Weekly  int // snapshots between 7 and 30 days old (default: 4)
	Monthly int // snapshots between 30 and 365 days old (default: 12)
}

func (p *RetentionPolicy) normalize() {
	if p.Hourly <= 0 {
		p.Hourly = 24
	}
	if p.Daily <= 0 {
		p.Daily = 7
	}
	if p.Weekly <= 0 {
		p.Weekly = 4
	}
	if p.Monthly <= 0 {
		p.Monthly = 12
	}
}

// Info describes one snapshot directory.
type Info struct {
	// Dir is the full path of the snapshot directory.
	Dir string

	// Timestamp is when the snapshot was taken, parsed from the
	// directory name.
	Timestamp time.Time

	// Size is the total bytes across the snapshot's files.
	Size int64
}

// List returns all snapshots under the backup directory, newest first.
// A missing backup directory yields an empty list.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read backup directory: %w", err)
	}

	var snapshots []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		ts, err := time.Parse(snapshotTimeFormat, entry.Name())
		if err != nil {
			continue // not a snapshot directory
		}

		dir := filepath.Join(s.dir, entry.Name())
		snapshots = append(snapshots, Info{
			Dir:       dir,
			Timestamp: ts,
			Size:      dirSize(dir),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.After(snapshots[j].Timestamp)
	})

	return snapshots, nil
}

// Prune removes snapshots that fall outside the retention policy. Returns
// the directories that were removed.
func (s *Service) Prune() ([]string, error) {
	snapshots, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	var hourly, daily, weekly, monthly []Info
	var toDelete []string

	for _, snap := range snapshots {
		age := now.Sub(snap.Timestamp)
		switch {
		case age < 24*time.Hour:
			hourly = append(hourly, snap)
		case age < 7*24*time.Hour:
			daily = append(daily, snap)
		case age < 30*24*time.Hour:
			weekly = append(weekly, snap)
		case age < 365*24*time.Hour:
			monthly = append(monthly, snap)
		default:
			toDelete = append(toDelete, snap.Dir)
		}
	}

	// Each tier is already newest-first, so the overflow past the cap is
	// the oldest snapshots in the tier.
	for _, tier := range []struct {
		snaps []Info
		keep  int
	}{
		{hourly, s.retention.Hourly},
		{daily, s.retention.Daily},
		{weekly, s.retention.Weekly},
		{monthly, s.retention.Monthly},
	} {
		if len(tier.snaps) > tier.keep {
			for _, snap := range tier.snaps[tier.keep:] {
				toDelete = append(toDelete, snap.Dir)
			}
		}
	}

	var lastErr error
	var removed []string
	for _, dir := range toDelete {
		if err := os.RemoveAll(dir); err != nil {
			lastErr = err
			continue
		}
		removed = append(removed, dir)
	}

	if lastErr != nil {
		return removed, fmt.Errorf("backup: failed to prune some snapshots: %w", lastErr)
	}
	return removed, nil
}

// dirSize sums the file sizes directly under dir. Unreadable entries count
// as zero.
func dirSize(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		if info, err := entry.Info(); err == nil && !entry.IsDir() {
			total += info.Size()
		}
	}
	return total
}
