package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// File is the YAML scene description.
type File struct {
	Name      string        `yaml:"name"`
	Sun       *SunDef       `yaml:"sun"`
	Lights    []LightDef    `yaml:"lights"`
	Interiors []InteriorDef `yaml:"interiors"`
	Terrains  []TerrainDef  `yaml:"terrains"`
	Atlases   []AtlasDef    `yaml:"atlases"`
	Shapes    []ShapeDef    `yaml:"shapes"`
	Imports   []string      `yaml:"imports"` // glTF files merged into the scene
}

// SunDef places the scene sun by angles.
type SunDef struct {
	Azimuth   float32    `yaml:"azimuth"`
	Elevation float32    `yaml:"elevation"`
	Color     [3]float32 `yaml:"color"`
	Ambient   [3]float32 `yaml:"ambient"`
	Shadows   *bool      `yaml:"shadows"`
}

// LightDef is one light in a scene file.
type LightDef struct {
	Name          string     `yaml:"name"`
	Kind          string     `yaml:"kind"`
	Model         string     `yaml:"model"`
	Position      [3]float32 `yaml:"position"`
	Direction     [3]float32 `yaml:"direction"`
	Color         [3]float32 `yaml:"color"`
	Ambient       [3]float32 `yaml:"ambient"`
	Radius        float32    `yaml:"radius"`
	SpotAngle     float32    `yaml:"spot_angle"`
	Shadows       *bool      `yaml:"shadows"`
	LocalAmbient  float32    `yaml:"local_ambient"`
	DoubleSided   bool       `yaml:"double_sided_ambient"`
	SmoothSpot    bool       `yaml:"smooth_spot"`
	IgnoreNormals bool       `yaml:"ignore_normals"`
	Zones         []int32    `yaml:"zones"`
	RestrictZones string     `yaml:"restrict_zones"` // diffuse, ambient, both
}

// InteriorDef is a set of convex polygons.
type InteriorDef struct {
	Name       string       `yaml:"name"`
	Zones      []int32      `yaml:"zones"`
	Base       [3]float32   `yaml:"base_color"`
	LexelSize  float32      `yaml:"lexel_size"`
	NormalMaps bool         `yaml:"normal_maps"`
	Surfaces   []SurfaceDef `yaml:"surfaces"`
	Boxes      []BoxDef     `yaml:"boxes"`
}

// SurfaceDef is one interior polygon.
type SurfaceDef struct {
	Zone  int32        `yaml:"zone"`
	Verts [][3]float32 `yaml:"verts"`
}

// BoxDef expands to the six outward faces of a box, or the inward faces
// for rooms.
type BoxDef struct {
	Min    [3]float32 `yaml:"min"`
	Max    [3]float32 `yaml:"max"`
	Inward bool       `yaml:"inward"`
	Zone   int32      `yaml:"zone"`
}

// TerrainDef is a heightfield.
type TerrainDef struct {
	Name       string     `yaml:"name"`
	Origin     [3]float32 `yaml:"origin"`
	SquareSize float32    `yaml:"square_size"`
	Size       int        `yaml:"size"`
	Heights    []float32  `yaml:"heights"` // empty means flat
	Base       [3]float32 `yaml:"base_color"`
}

// AtlasDef is a triangle mesh, given inline or as a glTF file.
type AtlasDef struct {
	Name      string       `yaml:"name"`
	Lightmap  int          `yaml:"lightmap_size"`
	Base      [3]float32   `yaml:"base_color"`
	Triangles [][3]float32 `yaml:"triangles"`
	GLTF      string       `yaml:"gltf"`
}

// ShapeDef is a moving box caster.
type ShapeDef struct {
	Name     string     `yaml:"name"`
	Position [3]float32 `yaml:"position"`
	Size     [3]float32 `yaml:"size"`
	Yaw      float32    `yaml:"yaw"`
	Zones    []int32    `yaml:"zones"`
}

// Load reads a scene from a YAML or glTF file.
func Load(path string) (*Scene, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return LoadGLTF(path, DefaultAtlasLightmap)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scene %s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f.Build(filepath.Dir(path))
}

// Build converts the description into a scene. Relative glTF paths are
// resolved against dir.
func (f *File) Build(dir string) (*Scene, error) {
	s := &Scene{Name: f.Name}

	if f.Sun != nil {
		s.Sun = lighting.NewSun(f.Sun.Azimuth, f.Sun.Elevation, color(f.Sun.Color), color(f.Sun.Ambient))
		if f.Sun.Shadows != nil {
			s.Sun.CastsShadows = *f.Sun.Shadows
		}
	}
	for i, d := range f.Lights {
		l, err := d.build()
		if err != nil {
			return nil, fmt.Errorf("light %d: %w", i, err)
		}
		s.Lights = append(s.Lights, l)
	}
	for _, d := range f.Interiors {
		in, err := d.build()
		if err != nil {
			return nil, err
		}
		s.Interiors = append(s.Interiors, in)
	}
	for _, d := range f.Terrains {
		t, err := NewTerrain(d.Name, vec(d.Origin), d.SquareSize, d.Size, d.Heights, color(d.Base))
		if err != nil {
			return nil, err
		}
		s.Terrains = append(s.Terrains, t)
	}
	for _, d := range f.Atlases {
		tris := make([]math.Vec3, len(d.Triangles))
		for i, v := range d.Triangles {
			tris[i] = vec(v)
		}
		if d.GLTF != "" {
			meshes, err := ReadGLTFMeshes(resolve(dir, d.GLTF))
			if err != nil {
				return nil, fmt.Errorf("atlas %q: %w", d.Name, err)
			}
			for _, m := range meshes {
				tris = append(tris, m.Triangles...)
			}
		}
		a, err := NewAtlas(d.Name, tris, d.Lightmap, color(d.Base))
		if err != nil {
			return nil, err
		}
		s.Atlases = append(s.Atlases, a)
	}
	for _, d := range f.Shapes {
		sh := NewShape(d.Name, vec(d.Position), vec(d.Size))
		sh.SetYaw(d.Yaw)
		if len(d.Zones) > 0 {
			sh.Zones = d.Zones
		}
		s.Shapes = append(s.Shapes, sh)
	}
	for _, imp := range f.Imports {
		g, err := LoadGLTF(resolve(dir, imp), DefaultAtlasLightmap)
		if err != nil {
			return nil, err
		}
		s.Merge(g)
	}
	return s, nil
}

// Merge appends other's lights and objects. other's sun is used only when
// s has none.
func (s *Scene) Merge(other *Scene) {
	if s.Sun == nil {
		s.Sun = other.Sun
	}
	s.Lights = append(s.Lights, other.Lights...)
	s.Interiors = append(s.Interiors, other.Interiors...)
	s.Terrains = append(s.Terrains, other.Terrains...)
	s.Atlases = append(s.Atlases, other.Atlases...)
	s.Shapes = append(s.Shapes, other.Shapes...)
}

func (d *LightDef) build() (*lighting.Light, error) {
	kind, err := lighting.ParseKind(d.Kind)
	if err != nil {
		return nil, err
	}
	if d.Model != "" {
		if _, ok := lighting.ParseModel(d.Model); !ok {
			return nil, fmt.Errorf("unknown lighting model %q", d.Model)
		}
	}
	l := lighting.NewLight(kind)
	l.Name = d.Name
	l.Model = d.Model
	l.Position = vec(d.Position)
	if d.Direction != [3]float32{} {
		l.Direction = vec(d.Direction).Normalize()
	}
	l.Color = color(d.Color)
	l.Ambient = color(d.Ambient)
	if d.Radius > 0 {
		l.Radius = d.Radius
	}
	if d.SpotAngle > 0 {
		l.SpotHalfAngle = d.SpotAngle
	}
	if d.Shadows != nil {
		l.CastsShadows = *d.Shadows
	}
	l.LocalAmbient = d.LocalAmbient
	l.DoubleSidedAmbient = d.DoubleSided
	l.SmoothSpot = d.SmoothSpot
	l.UseNormals = !d.IgnoreNormals
	for i, z := range d.Zones {
		if i < len(l.Zones) {
			l.Zones[i] = z
		}
	}
	switch d.RestrictZones {
	case "":
	case "diffuse":
		l.DiffuseRestrictZone = true
	case "ambient":
		l.AmbientRestrictZone = true
	case "both":
		l.DiffuseRestrictZone, l.AmbientRestrictZone = true, true
	default:
		return nil, fmt.Errorf("restrict_zones %q", d.RestrictZones)
	}
	return l, nil
}

func (d *InteriorDef) build() (*Interior, error) {
	var surfaces []Surface
	add := func(verts []math.Vec3, zone int32) {
		if s, ok := NewSurface(verts, zone, d.LexelSize); ok {
			surfaces = append(surfaces, s)
		}
	}
	for _, sd := range d.Surfaces {
		verts := make([]math.Vec3, len(sd.Verts))
		for i, v := range sd.Verts {
			verts[i] = vec(v)
		}
		add(verts, sd.Zone)
	}
	for _, b := range d.Boxes {
		for _, face := range BoxFaces(math.Box{Min: vec(b.Min), Max: vec(b.Max)}, b.Inward) {
			add(face, b.Zone)
		}
	}
	if len(surfaces) == 0 {
		return nil, fmt.Errorf("interior %q has no usable surfaces", d.Name)
	}
	in := NewInterior(d.Name, surfaces, d.Zones, color(d.Base))
	in.NormalMaps = d.NormalMaps
	return in, nil
}

// BoxFaces returns the six faces of b wound to face outward, or inward.
func BoxFaces(b math.Box, inward bool) [][]math.Vec3 {
	k := b.Corners()
	out := make([][]math.Vec3, 0, 6)
	for _, f := range boxFaces {
		face := []math.Vec3{k[f[0]], k[f[1]], k[f[2]], k[f[3]]}
		if inward {
			face[1], face[3] = face[3], face[1]
		}
		out = append(out, face)
	}
	return out
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func vec(v [3]float32) math.Vec3 { return math.Vec3{X: v[0], Y: v[1], Z: v[2]} }

func color(c [3]float32) math.Color { return math.Color{R: c[0], G: c[1], B: c[2]} }
