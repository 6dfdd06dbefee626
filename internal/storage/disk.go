package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// sqliteSidecars are the suffixes of the files SQLite keeps next to a WAL-mode database.
var sqliteSidecars = []string{"", "-wal", "-shm"}

// DatabaseFiles returns the database file and its WAL sidecars. An in-memory database has none.
func DatabaseFiles(dbPath string) []string {
	if dbPath == "" || dbPath == memoryDSN {
		return nil
	}
	files := make([]string, 0, len(sqliteSidecars))
	for _, suffix := range sqliteSidecars {
		files = append(files, dbPath+suffix)
	}
	return files
}

// DiskUsageBytes sums the size of the given files and directories. Directories are walked
// recursively. Empty and missing paths count as zero.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
