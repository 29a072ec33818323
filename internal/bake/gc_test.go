package bake

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/Faultbox/midgard-lighting/pkg/formats"
)

// writeCache writes a file of size bytes starting with version.
func writeCache(t *testing.T, dir, name string, version uint32, size int, age time.Duration) string {
	t.Helper()
	data := make([]byte, size)
	binary.LittleEndian.PutUint32(data, version)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	when := time.Now().Add(-age)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatal(err)
	}
	return path
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	slices.Sort(out)
	return out
}

func TestGCRemovesStaleVersions(t *testing.T) {
	dir := t.TempDir()
	current := writeCache(t, dir, "current.ml", 0x10, 8, 0)
	writeCache(t, dir, "old.ml", 0x10, 8, time.Hour)
	writeCache(t, dir, "good.ml", formats.MLVersion, 8, time.Hour)
	writeCache(t, dir, "notes.txt", 0x10, 8, time.Hour)
	writeCache(t, dir, "a..b.ml", 0x10, 8, time.Hour)

	removed, err := GC(dir, current, -1, PurgeLastModified)
	if err != nil {
		t.Fatal(err)
	}
	if got := baseNames(removed); !slices.Equal(got, []string{"old.ml"}) {
		t.Errorf("removed %v, want [old.ml]", got)
	}
	for _, keep := range []string{"current.ml", "good.ml", "notes.txt", "a..b.ml"} {
		if _, err := os.Stat(filepath.Join(dir, keep)); err != nil {
			t.Errorf("%s was removed", keep)
		}
	}
}

func TestGCQuota(t *testing.T) {
	tests := []struct {
		method PurgeMethod
		want   []string
	}{
		{PurgeLastModified, []string{"big.ml", "oldest.ml"}},
		{PurgeLastCreated, []string{"big.ml", "oldest.ml"}},
		{PurgeMaxSize, []string{"big.ml"}},
		{PurgeMinSize, []string{"oldest.ml", "small.ml"}},
	}
	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			dir := t.TempDir()
			v := formats.MLVersion
			current := writeCache(t, dir, "current.ml", v, 1024, 0)
			writeCache(t, dir, "oldest.ml", v, 1024, 3*time.Hour)
			writeCache(t, dir, "big.ml", v, 2048, 2*time.Hour)
			writeCache(t, dir, "small.ml", v, 512, time.Hour)

			// 4.5 KB on disk, 3 KB allowed.
			removed, err := GC(dir, current, 3, tt.method)
			if err != nil {
				t.Fatal(err)
			}
			if got := baseNames(removed); !slices.Equal(got, tt.want) {
				t.Errorf("removed %v, want %v", got, tt.want)
			}
			if _, err := os.Stat(current); err != nil {
				t.Error("current file was removed")
			}
		})
	}
}

func TestParsePurgeMethod(t *testing.T) {
	for _, m := range []PurgeMethod{PurgeLastModified, PurgeLastCreated, PurgeMinSize, PurgeMaxSize} {
		got, err := ParsePurgeMethod(m.String())
		if err != nil || got != m {
			t.Errorf("ParsePurgeMethod(%q) = %v, %v", m, got, err)
		}
	}
	if m, err := ParsePurgeMethod(""); err != nil || m != PurgeLastModified {
		t.Errorf("empty method = %v, %v", m, err)
	}
	if _, err := ParsePurgeMethod("random"); err == nil {
		t.Error("expected error for unknown method")
	}
}
