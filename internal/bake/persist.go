package bake

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Faultbox/midgard-lighting/internal/scene"
	"github.com/Faultbox/midgard-lighting/pkg/formats"
)

var ErrCacheNotWritable = errors.New("lighting cache directory is not writable")

// CachePath returns the cache file for a scene at the given quality.
func CachePath(dir, sceneName string, q Quality) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, sceneName)
	if name == "" {
		name = "scene"
	}
	return filepath.Join(dir, name+q.CacheSuffix()+formats.MLExt)
}

// CheckWritable creates dir if needed and probes it with a temp file.
func CheckWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheNotWritable, err)
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheNotWritable, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}

// touch refreshes a cache file's timestamps so LRU collection keeps it.
func touch(path string) error {
	now := time.Now()
	return os.Chtimes(path, now, now)
}

func chunkType(k scene.ObjectKind) formats.ChunkType {
	switch k {
	case scene.KindTerrain:
		return formats.TerrainChunk
	case scene.KindAtlas:
		return formats.AtlasChunk
	}
	return formats.InteriorChunk
}

// headers lists what each object chunk must carry, in persist order.
func headers(proxies []*Proxy) []formats.ChunkHeader {
	out := make([]formats.ChunkHeader, len(proxies))
	for i, p := range proxies {
		out[i] = formats.ChunkHeader{Type: chunkType(p.Object.Kind()), CRC: p.CRC}
	}
	return out
}

// encode builds the cache file from finished proxies.
func encode(missionCRC uint32, proxies []*Proxy) *formats.ML {
	ml := formats.NewML(missionCRC)
	for _, p := range proxies {
		c := formats.Chunk{Type: chunkType(p.Object.Kind()), CRC: p.CRC}
		if c.Type == formats.InteriorChunk {
			d := &formats.InteriorData{
				DetailLightmapCounts: []uint32{uint32(len(p.Final))},
				NormalLightmaps:      make([]*formats.Lightmap, len(p.Final)),
			}
			base := p.Object.BaseColor()
			for i, lm := range p.Final {
				d.DetailLightmapIndices = append(d.DetailLightmapIndices, uint32(i))
				d.Lightmaps = append(d.Lightmaps, DiffEncode(lm, base))
				if i < len(p.FinalNormal) {
					d.NormalLightmaps[i] = p.FinalNormal[i]
				}
			}
			c.Interior = d
		} else if len(p.Final) > 0 {
			c.Lightmap = p.Final[0]
		}
		ml.Chunks = append(ml.Chunks, c)
	}
	return ml
}

// decode installs cached lightmaps into proxies. The file must already
// have passed Validate against the same proxies.
func decode(ml *formats.ML, proxies []*Proxy) error {
	objects := ml.Objects()
	for i, p := range proxies {
		c := objects[i]
		var maps []*formats.Lightmap
		var normals []*formats.Lightmap
		if c.Type == formats.InteriorChunk {
			if c.Interior == nil {
				return fmt.Errorf("%s: interior chunk without data", p.Name())
			}
			base := p.Object.BaseColor()
			for _, lm := range c.Interior.Lightmaps {
				maps = append(maps, DiffDecode(lm, base))
			}
			if p.Normals != nil {
				normals = c.Interior.NormalLightmaps
			}
		} else if c.Lightmap != nil {
			maps = []*formats.Lightmap{c.Lightmap}
		}
		if len(maps) != len(p.Maps) {
			return fmt.Errorf("%s: %d cached lightmaps, want %d", p.Name(), len(maps), len(p.Maps))
		}
		for j, lm := range maps {
			if lm.Width != p.Maps[j].Width || lm.Height != p.Maps[j].Height {
				return fmt.Errorf("%s: cached lightmap %d is %dx%d, want %dx%d",
					p.Name(), j, lm.Width, lm.Height, p.Maps[j].Width, p.Maps[j].Height)
			}
		}
		p.Final = maps
		p.FinalNormal = normals
	}
	return nil
}

// loadCache reads and validates a cache file for the proxies.
func loadCache(path string, missionCRC uint32, proxies []*Proxy) error {
	ml, err := formats.LoadML(path)
	if err != nil {
		return err
	}
	if err := ml.Validate(missionCRC, headers(proxies)); err != nil {
		return err
	}
	return decode(ml, proxies)
}
