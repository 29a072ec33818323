package bake

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Faultbox/midgard-lighting/pkg/formats"
)

// PurgeMethod picks which cache files go first when over quota.
type PurgeMethod uint8

const (
	PurgeLastModified PurgeMethod = iota
	PurgeLastCreated
	PurgeMinSize
	PurgeMaxSize
)

var purgeNames = [...]string{"lastModified", "lastCreated", "minSize", "maxSize"}

func (m PurgeMethod) String() string {
	if int(m) < len(purgeNames) {
		return purgeNames[m]
	}
	return fmt.Sprintf("PurgeMethod(%d)", m)
}

// ParsePurgeMethod converts a config name. The empty string selects
// PurgeLastModified.
func ParsePurgeMethod(s string) (PurgeMethod, error) {
	if s == "" {
		return PurgeLastModified, nil
	}
	for i, n := range purgeNames {
		if n == s {
			return PurgeMethod(i), nil
		}
	}
	return PurgeLastModified, fmt.Errorf("unknown purge method %q", s)
}

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

// GC removes lighting cache files from dir. Files of another format
// version go first, then the oldest or largest or smallest files until
// the directory fits in quotaKB (negative is unlimited). current is never
// removed. The removed paths are returned.
//
// Go has no portable file creation time, so PurgeLastCreated orders by
// modification time like PurgeLastModified, with names as a tiebreak.
func GC(dir, current string, quotaKB int64, method PurgeMethod) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	currentAbs, _ := filepath.Abs(current)

	var removed []string
	var files []cacheFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), formats.MLExt) || strings.Contains(name, "..") {
			continue
		}
		path := filepath.Join(dir, name)
		if abs, _ := filepath.Abs(path); abs == currentAbs {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !currentVersion(path) {
			if err := os.Remove(path); err == nil {
				removed = append(removed, path)
			}
			continue
		}
		files = append(files, cacheFile{path: path, size: info.Size(), modTime: info.ModTime()})
	}
	if quotaKB < 0 {
		return removed, nil
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	if info, err := os.Stat(current); err == nil {
		total += info.Size()
	}
	quota := quotaKB * 1024
	if total <= quota {
		return removed, nil
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch method {
		case PurgeMinSize:
			return a.size < b.size
		case PurgeMaxSize:
			return a.size > b.size
		}
		if !a.modTime.Equal(b.modTime) {
			return a.modTime.Before(b.modTime)
		}
		return a.path < b.path
	})
	for _, f := range files {
		if total <= quota {
			break
		}
		if err := os.Remove(f.path); err != nil {
			return removed, err
		}
		total -= f.size
		removed = append(removed, f.path)
	}
	return removed, nil
}

// currentVersion reads the version word at the start of a cache file.
func currentVersion(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var hdr [4]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return false
	}
	return binary.LittleEndian.Uint32(hdr[:]) == formats.MLVersion
}
