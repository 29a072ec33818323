package scene

import (
	"encoding/json"
	"fmt"
	gomath "math"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/ext/lightspunctual"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// Default radius for glTF point and spot lights without a range.
const gltfDefaultRange = 10

// Mesh is the triangle list of one glTF mesh node, in scene space.
type Mesh struct {
	Name      string
	Triangles []math.Vec3
}

// yUpToZUp turns glTF's Y-up space into the scene's Z-up space.
var yUpToZUp = math.RotateX(gomath.Pi / 2)

// ReadGLTFMeshes reads every triangle mesh instanced by the default scene.
func ReadGLTFMeshes(path string) ([]Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	var meshes []Mesh
	err = walkNodes(doc, func(n *gltf.Node, world math.Mat4) error {
		if n.Mesh == nil {
			return nil
		}
		m := doc.Meshes[*n.Mesh]
		tris, err := readTriangles(doc, m, world)
		if err != nil {
			return fmt.Errorf("mesh %q: %w", m.Name, err)
		}
		if len(tris) > 0 {
			name := n.Name
			if name == "" {
				name = m.Name
			}
			meshes = append(meshes, Mesh{Name: name, Triangles: tris})
		}
		return nil
	})
	return meshes, err
}

// LoadGLTF builds a scene from a glTF file: every mesh node becomes an
// atlas and every KHR_lights_punctual light becomes a static light. The
// first directional light is the sun.
func LoadGLTF(path string, lightmapSize int) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	s := &Scene{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	defs, err := documentLights(doc)
	if err != nil {
		return nil, err
	}

	err = walkNodes(doc, func(n *gltf.Node, world math.Mat4) error {
		if n.Mesh != nil {
			m := doc.Meshes[*n.Mesh]
			tris, err := readTriangles(doc, m, world)
			if err != nil {
				return fmt.Errorf("mesh %q: %w", m.Name, err)
			}
			if len(tris) > 0 {
				name := n.Name
				if name == "" {
					name = fmt.Sprintf("%s.%d", m.Name, len(s.Atlases))
				}
				a, err := NewAtlas(name, tris, lightmapSize, math.Gray(1))
				if err != nil {
					return err
				}
				s.Atlases = append(s.Atlases, a)
			}
		}
		if idx, ok := nodeLight(n); ok && int(idx) < len(defs) {
			l := gltfLight(defs[idx], world)
			if l.Kind == lighting.Vector && s.Sun == nil {
				s.Sun = l
			} else {
				s.Lights = append(s.Lights, l)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func walkNodes(doc *gltf.Document, fn func(*gltf.Node, math.Mat4) error) error {
	var roots []int
	switch {
	case doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		for i := range doc.Nodes {
			roots = append(roots, i)
		}
	}
	var visit func(i int, parent math.Mat4, depth int) error
	visit = func(i int, parent math.Mat4, depth int) error {
		if i < 0 || i >= len(doc.Nodes) || depth > 64 {
			return nil
		}
		n := doc.Nodes[i]
		world := parent.Mul(localMatrix(n))
		if err := fn(n, world); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := visit(c, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := visit(r, yUpToZUp, 0); err != nil {
			return err
		}
	}
	return nil
}

// localMatrix returns the node's matrix, or its TRS composition.
func localMatrix(n *gltf.Node) math.Mat4 {
	mat := n.MatrixOrDefault()
	if mat != gltf.DefaultMatrix {
		var m math.Mat4
		for i, v := range mat {
			m[i] = float32(v)
		}
		return m
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	sc := n.ScaleOrDefault()
	q := math.Quat{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}
	return math.Translate(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul(q.ToMat4()).
		Mul(math.Scale(float32(sc[0]), float32(sc[1]), float32(sc[2])))
}

func readTriangles(doc *gltf.Document, m *gltf.Mesh, world math.Mat4) ([]math.Vec3, error) {
	var out []math.Vec3
	for _, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("read positions: %w", err)
		}
		var indices []uint32
		if prim.Indices != nil {
			indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return nil, fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}
		for i := 0; i+2 < len(indices); i += 3 {
			for _, vi := range indices[i : i+3] {
				if int(vi) >= len(positions) {
					return nil, fmt.Errorf("index %d out of range", vi)
				}
				p := positions[vi]
				out = append(out, world.TransformVec3(math.Vec3{X: p[0], Y: p[1], Z: p[2]}))
			}
		}
	}
	return out, nil
}

// documentLights returns the KHR_lights_punctual definitions. Extensions
// the decoder did not type are still raw JSON.
func documentLights(doc *gltf.Document) (lightspunctual.Lights, error) {
	switch ext := doc.Extensions[lightspunctual.ExtensionName].(type) {
	case lightspunctual.Lights:
		return ext, nil
	case *lightspunctual.Lights:
		return *ext, nil
	case json.RawMessage:
		var v struct {
			Lights []*lightspunctual.Light `json:"lights"`
		}
		if err := json.Unmarshal(ext, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", lightspunctual.ExtensionName, err)
		}
		return lightspunctual.Lights(v.Lights), nil
	}
	return nil, nil
}

func nodeLight(n *gltf.Node) (lightspunctual.LightIndex, bool) {
	switch ext := n.Extensions[lightspunctual.ExtensionName].(type) {
	case lightspunctual.LightIndex:
		return ext, true
	case *lightspunctual.LightIndex:
		return *ext, true
	case json.RawMessage:
		var v struct {
			Light *uint32 `json:"light"`
		}
		if json.Unmarshal(ext, &v) == nil && v.Light != nil {
			return lightspunctual.LightIndex(*v.Light), true
		}
	}
	return 0, false
}

// gltfLight converts a punctual light. glTF lights shine down their
// node's local -Z axis.
func gltfLight(def *lightspunctual.Light, world math.Mat4) *lighting.Light {
	kind := lighting.StaticPoint
	switch def.Type {
	case lightspunctual.TypeDirectional:
		kind = lighting.Vector
	case lightspunctual.TypeSpot:
		kind = lighting.StaticSpot
	}
	l := lighting.NewLight(kind)
	l.Name = def.Name
	l.Position = math.Vec3{X: world[12], Y: world[13], Z: world[14]}
	d := world.TransformDirection([3]float32{0, 0, -1})
	l.Direction = math.Vec3{X: d[0], Y: d[1], Z: d[2]}.Normalize()

	c := def.ColorOrDefault()
	k := math.Clamp(float32(def.IntensityOrDefault()), 0, 1)
	l.Color = math.Color{R: float32(c[0]), G: float32(c[1]), B: float32(c[2])}.Scale(k)

	l.Radius = gltfDefaultRange
	if def.Range != nil && *def.Range > 0 && !gomath.IsInf(*def.Range, 0) {
		l.Radius = float32(*def.Range)
	}
	if def.Spot != nil {
		l.SpotHalfAngle = float32(def.Spot.OuterConeAngleOrDefault() * 180 / gomath.Pi)
	}
	return l
}
