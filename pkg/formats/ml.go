package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
)

// MLVersion is the lighting cache file version. Files of any other version
// are stale.
const MLVersion uint32 = 0x11

// MLExt is the lighting cache file extension.
const MLExt = ".ml"

// ML format errors.
var (
	ErrInvalidVersion    = errors.New("invalid lighting cache version")
	ErrNoChunks          = errors.New("lighting cache has no chunks")
	ErrMissionChunkOrder = errors.New("mission chunk must be first and only first")
	ErrUnknownChunk      = errors.New("unknown lighting cache chunk")
	ErrChunkMismatch     = errors.New("lighting cache does not match scene")
	ErrTruncatedML       = errors.New("truncated lighting cache data")
)

// ChunkType identifies the object a chunk belongs to.
type ChunkType uint32

const (
	MissionChunk ChunkType = iota
	InteriorChunk
	TerrainChunk
	AtlasChunk
)

func (t ChunkType) String() string {
	switch t {
	case MissionChunk:
		return "mission"
	case InteriorChunk:
		return "interior"
	case TerrainChunk:
		return "terrain"
	case AtlasChunk:
		return "atlas"
	}
	return fmt.Sprintf("ChunkType(%d)", uint32(t))
}

// Lightmap is an RGB8 image, rows top to bottom.
type Lightmap struct {
	Width, Height int
	Pix           []byte
}

// NewLightmap allocates a black lightmap.
func NewLightmap(w, h int) *Lightmap {
	return &Lightmap{Width: w, Height: h, Pix: make([]byte, w*h*3)}
}

// Image converts the lightmap to an opaque NRGBA image.
func (l *Lightmap) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, l.Width, l.Height))
	for i := range l.Width * l.Height {
		copy(img.Pix[i*4:i*4+3], l.Pix[i*3:i*3+3])
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// LightmapFromImage converts any image to a lightmap, dropping alpha.
func LightmapFromImage(img image.Image) *Lightmap {
	b := img.Bounds()
	l := NewLightmap(b.Dx(), b.Dy())
	for y := range l.Height {
		for x := range l.Width {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			o := (y*l.Width + x) * 3
			l.Pix[o], l.Pix[o+1], l.Pix[o+2] = byte(r>>8), byte(g>>8), byte(bl>>8)
		}
	}
	return l
}

// InteriorData is the stored lighting of one interior.
type InteriorData struct {
	DetailLightmapCounts  []uint32
	DetailLightmapIndices []uint32
	Lightmaps             []*Lightmap
	// NormalLightmaps may hold nil entries.
	NormalLightmaps []*Lightmap
	VertexLighting  []byte
}

// Chunk is one object's stored lighting, tagged with the object CRC.
// Interior is set for interior chunks, Lightmap for terrain and atlas.
type Chunk struct {
	Type     ChunkType
	CRC      uint32
	Interior *InteriorData
	Lightmap *Lightmap
}

// ChunkHeader is the part of a chunk a scene object is validated against.
type ChunkHeader struct {
	Type ChunkType
	CRC  uint32
}

// ML is a lighting cache file: a mission chunk then one chunk per object.
type ML struct {
	Chunks []Chunk
}

// NewML starts a file for a scene with the given mission CRC.
func NewML(missionCRC uint32) *ML {
	return &ML{Chunks: []Chunk{{Type: MissionChunk, CRC: missionCRC}}}
}

// MissionCRC returns the CRC of the mission chunk, 0 when missing.
func (m *ML) MissionCRC() uint32 {
	if len(m.Chunks) == 0 {
		return 0
	}
	return m.Chunks[0].CRC
}

// Objects returns the object chunks.
func (m *ML) Objects() []Chunk {
	if len(m.Chunks) == 0 {
		return nil
	}
	return m.Chunks[1:]
}

// Validate accepts the file only for the same mission and the same objects
// in the same order.
func (m *ML) Validate(missionCRC uint32, objects []ChunkHeader) error {
	if len(m.Chunks) != len(objects)+1 {
		return fmt.Errorf("%w: %d chunks for %d objects", ErrChunkMismatch, len(m.Chunks), len(objects))
	}
	if m.MissionCRC() != missionCRC {
		return fmt.Errorf("%w: mission crc %08x, want %08x", ErrChunkMismatch, m.MissionCRC(), missionCRC)
	}
	for i, o := range objects {
		c := m.Chunks[i+1]
		if c.Type != o.Type || c.CRC != o.CRC {
			return fmt.Errorf("%w: chunk %d is %s %08x, want %s %08x",
				ErrChunkMismatch, i+1, c.Type, c.CRC, o.Type, o.CRC)
		}
	}
	return nil
}

// ParseML parses a lighting cache file from raw bytes.
func ParseML(data []byte) (*ML, error) {
	return ReadML(bytes.NewReader(data))
}

// ReadML reads a lighting cache file.
func ReadML(r io.Reader) (*ML, error) {
	rd := newMLReader(r)

	version := rd.u32("version")
	if rd.err != nil {
		return nil, rd.err
	}
	if version != MLVersion {
		return nil, fmt.Errorf("%w: 0x%x", ErrInvalidVersion, version)
	}
	count := rd.u32("chunk count")
	if rd.err != nil {
		return nil, rd.err
	}
	if count == 0 {
		return nil, ErrNoChunks
	}

	m := &ML{}
	for i := range count {
		c := Chunk{Type: ChunkType(rd.u32("chunk type"))}
		if rd.err != nil {
			return nil, rd.err
		}
		if (i == 0) != (c.Type == MissionChunk) {
			return nil, fmt.Errorf("%w: chunk %d is %s", ErrMissionChunkOrder, i, c.Type)
		}
		c.CRC = rd.u32("chunk crc")

		switch c.Type {
		case MissionChunk:
		case InteriorChunk:
			c.Interior = rd.interior()
		case TerrainChunk, AtlasChunk:
			c.Lightmap = rd.lightmap()
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownChunk, uint32(c.Type))
		}
		if rd.err != nil {
			return nil, fmt.Errorf("chunk %d (%s): %w", i, c.Type, rd.err)
		}
		m.Chunks = append(m.Chunks, c)
	}
	return m, nil
}

type mlReader struct {
	r    *bufio.Reader
	left int64 // input bytes not yet read, -1 when unknown
	err  error
}

// sized is implemented by in-memory readers such as bytes.Reader.
type sized interface {
	Len() int
}

func newMLReader(r io.Reader) *mlReader {
	rd := &mlReader{r: bufio.NewReader(r), left: -1}
	if s, ok := r.(sized); ok {
		rd.left = int64(s.Len())
	}
	return rd
}

// fits fails the read when n bytes of what cannot be in the input.
func (rd *mlReader) fits(n int64, what string) bool {
	if rd.left >= 0 && n > rd.left {
		rd.err = fmt.Errorf("%w: %s needs %d bytes, %d left", ErrTruncatedML, what, n, rd.left)
		return false
	}
	return true
}

func (rd *mlReader) consumed(n int) {
	if rd.left >= 0 {
		rd.left -= int64(n)
	}
}

func (rd *mlReader) u32(what string) uint32 {
	if rd.err != nil {
		return 0
	}
	var v uint32
	if err := binary.Read(rd.r, binary.LittleEndian, &v); err != nil {
		rd.err = fmt.Errorf("%w: reading %s", ErrTruncatedML, what)
		return 0
	}
	rd.consumed(4)
	return v
}

func (rd *mlReader) bytes(n uint32, what string) []byte {
	if rd.err != nil || !rd.fits(int64(n), what) {
		return nil
	}
	// Without a known size, grow with the data actually read.
	var buf bytes.Buffer
	if rd.left >= 0 {
		buf.Grow(int(n))
	}
	if _, err := io.CopyN(&buf, rd.r, int64(n)); err != nil {
		rd.err = fmt.Errorf("%w: reading %s", ErrTruncatedML, what)
		return nil
	}
	rd.consumed(int(n))
	return buf.Bytes()
}

func (rd *mlReader) u32s(what string) []uint32 {
	n := rd.u32(what)
	if rd.err != nil || !rd.fits(int64(n)*4, what) {
		return nil
	}
	out := make([]uint32, 0, min(n, 1<<16))
	for range n {
		v := rd.u32(what)
		if rd.err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// lightmap reads a length-prefixed PNG.
func (rd *mlReader) lightmap() *Lightmap {
	data := rd.bytes(rd.u32("png length"), "png")
	if rd.err != nil {
		return nil
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		rd.err = fmt.Errorf("decoding lightmap: %w", err)
		return nil
	}
	return LightmapFromImage(img)
}

func (rd *mlReader) interior() *InteriorData {
	// The lightmap section length is informational; sections are self
	// delimiting.
	rd.u32("lightmap section size")
	d := &InteriorData{
		DetailLightmapCounts:  rd.u32s("detail lightmap counts"),
		DetailLightmapIndices: rd.u32s("detail lightmap indices"),
	}
	n := rd.u32("lightmap count")
	for i := uint32(0); i < n && rd.err == nil; i++ {
		d.Lightmaps = append(d.Lightmaps, rd.lightmap())
	}
	n = rd.u32("normal lightmap count")
	for i := uint32(0); i < n && rd.err == nil; i++ {
		flag := rd.bytes(1, "normal lightmap flag")
		if rd.err != nil {
			break
		}
		var lm *Lightmap
		if flag[0] != 0 {
			lm = rd.lightmap()
		}
		d.NormalLightmaps = append(d.NormalLightmaps, lm)
	}
	d.VertexLighting = rd.bytes(rd.u32("vertex lighting length"), "vertex lighting")
	if rd.err != nil {
		return nil
	}
	return d
}

// Write encodes the file.
func (m *ML) Write(w io.Writer) error {
	if len(m.Chunks) == 0 {
		return ErrNoChunks
	}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, MLVersion)
	binary.Write(&buf, binary.LittleEndian, uint32(len(m.Chunks)))
	for i, c := range m.Chunks {
		if (i == 0) != (c.Type == MissionChunk) {
			return fmt.Errorf("%w: chunk %d is %s", ErrMissionChunkOrder, i, c.Type)
		}
		binary.Write(&buf, binary.LittleEndian, uint32(c.Type))
		binary.Write(&buf, binary.LittleEndian, c.CRC)

		var err error
		switch c.Type {
		case MissionChunk:
		case InteriorChunk:
			if c.Interior == nil {
				err = errors.New("interior chunk without data")
			} else {
				err = writeInterior(&buf, c.Interior)
			}
		case TerrainChunk, AtlasChunk:
			err = writeLightmap(&buf, c.Lightmap)
		default:
			err = fmt.Errorf("%w: %d", ErrUnknownChunk, uint32(c.Type))
		}
		if err != nil {
			return fmt.Errorf("chunk %d (%s): %w", i, c.Type, err)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func writeLightmap(buf *bytes.Buffer, l *Lightmap) error {
	if l == nil {
		return errors.New("missing lightmap")
	}
	var enc bytes.Buffer
	if err := png.Encode(&enc, l.Image()); err != nil {
		return fmt.Errorf("encoding lightmap: %w", err)
	}
	binary.Write(buf, binary.LittleEndian, uint32(enc.Len()))
	buf.Write(enc.Bytes())
	return nil
}

func writeU32s(buf *bytes.Buffer, vs []uint32) {
	binary.Write(buf, binary.LittleEndian, uint32(len(vs)))
	for _, v := range vs {
		binary.Write(buf, binary.LittleEndian, v)
	}
}

func writeInterior(buf *bytes.Buffer, d *InteriorData) error {
	var sec bytes.Buffer
	writeU32s(&sec, d.DetailLightmapCounts)
	writeU32s(&sec, d.DetailLightmapIndices)
	binary.Write(&sec, binary.LittleEndian, uint32(len(d.Lightmaps)))
	for _, l := range d.Lightmaps {
		if err := writeLightmap(&sec, l); err != nil {
			return err
		}
	}
	binary.Write(&sec, binary.LittleEndian, uint32(len(d.NormalLightmaps)))
	for _, l := range d.NormalLightmaps {
		if l == nil {
			sec.WriteByte(0)
			continue
		}
		sec.WriteByte(1)
		if err := writeLightmap(&sec, l); err != nil {
			return err
		}
	}

	binary.Write(buf, binary.LittleEndian, uint32(sec.Len()))
	buf.Write(sec.Bytes())
	binary.Write(buf, binary.LittleEndian, uint32(len(d.VertexLighting)))
	buf.Write(d.VertexLighting)
	return nil
}

// LoadML reads a lighting cache file from disk.
func LoadML(path string) (*ML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// SaveML writes the file next to path and renames it into place, so a
// failed write never leaves a partial cache file.
func (m *ML) SaveML(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := m.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
