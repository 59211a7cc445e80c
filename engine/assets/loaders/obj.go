package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

var (
	ErrEmptyOBJ        = errors.New("obj file has no faces")
	ErrUnsupportedFace = errors.New("only triangle faces are supported")
	ErrBadFaceIndex    = errors.New("malformed or out of range face index")
	ErrBadRecord       = errors.New("malformed obj record")
)

// OBJLoader reads Wavefront OBJ triangle meshes.
type OBJLoader struct{}

func (ol *OBJLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mesh, err := ParseOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	mesh.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	core.LogDebug("obj '%s': %d vertices, %d triangles", mesh.Name, len(mesh.Vertices), len(mesh.Indices)/3)

	return &metadata.Resource{
		ID:       core.NewResourceID(),
		Type:     metadata.ResourceTypeMesh,
		Name:     mesh.Name,
		FullPath: path,
		DataSize: mesh.VertexBytes() + mesh.IndexBytes(),
		Data:     mesh,
	}, nil
}

func (ol *OBJLoader) Unload(*metadata.Resource) error {
	return nil
}

type objParser struct {
	positions []math.Vec3
	normals   []math.Vec3
	uvs       []math.Vec2

	seen map[cornerKey]uint32
	mesh *metadata.Mesh
}

// cornerKey is a face corner's resolved 0-based (position, texcoord,
// normal) indices, -1 when absent.
type cornerKey struct {
	position, texcoord, normal int
}

// ParseOBJ reads v, vn, vt and triangular f records. Vertices are
// deduplicated by the absolute indices their face corner resolves to, so
// relative (negative) references never alias. Indices are validated while parsing: a
// reference that does not parse or points outside its list fails the whole
// file. A texcoord or normal reference into a list the file never declares
// is treated as absent; missing normals are replaced by the face normal.
func ParseOBJ(r io.Reader) (*metadata.Mesh, error) {
	p := &objParser{
		seen: make(map[cornerKey]uint32),
		mesh: &metadata.Mesh{},
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		var err error
		switch fields[0] {
		case "v":
			var v math.Vec3
			v, err = parseVec3(fields[1:])
			p.positions = append(p.positions, v)
		case "vn":
			var v math.Vec3
			v, err = parseVec3(fields[1:])
			p.normals = append(p.normals, v)
		case "vt":
			var v math.Vec2
			v, err = parseVec2(fields[1:])
			p.uvs = append(p.uvs, v)
		case "f":
			err = p.face(fields[1:])
		default:
			// o, g, s, usemtl, mtllib and friends carry nothing we draw
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p.mesh.Indices) == 0 {
		return nil, ErrEmptyOBJ
	}
	return p.mesh, nil
}

func (p *objParser) face(corners []string) error {
	if len(corners) != 3 {
		return fmt.Errorf("face with %d corners: %w", len(corners), ErrUnsupportedFace)
	}

	var idx [3]uint32
	var missingNormal [3]bool
	needNormal := false
	for i, token := range corners {
		key, vert, err := p.vertex(token)
		if err != nil {
			return err
		}
		if v, ok := p.seen[key]; ok {
			idx[i] = v
			continue
		}
		v := uint32(len(p.mesh.Vertices))
		p.mesh.Vertices = append(p.mesh.Vertices, vert)
		p.seen[key] = v
		idx[i] = v
		missingNormal[i] = key.normal < 0
		needNormal = needNormal || key.normal < 0
	}

	if needNormal {
		vs := p.mesh.Vertices
		n := math.FaceNormal(vs[idx[0]].Position, vs[idx[1]].Position, vs[idx[2]].Position)
		for i := range idx {
			if missingNormal[i] {
				vs[idx[i]].Normal = n
			}
		}
	}

	p.mesh.Indices = append(p.mesh.Indices, idx[0], idx[1], idx[2])
	return nil
}

// vertex resolves a "p", "p/t", "p//n" or "p/t/n" token.
func (p *objParser) vertex(token string) (cornerKey, metadata.Vertex, error) {
	key := cornerKey{position: -1, texcoord: -1, normal: -1}
	var out metadata.Vertex

	parts := strings.Split(token, "/")
	if len(parts) > 3 || parts[0] == "" {
		return key, out, fmt.Errorf("token %q: %w", token, ErrBadFaceIndex)
	}

	pi, err := resolveIndex(parts[0], len(p.positions))
	if err != nil {
		return key, out, fmt.Errorf("position in %q: %w", token, err)
	}
	key.position = pi
	out.Position = p.positions[pi]

	if len(parts) > 1 && parts[1] != "" && len(p.uvs) > 0 {
		ti, err := resolveIndex(parts[1], len(p.uvs))
		if err != nil {
			return key, out, fmt.Errorf("texcoord in %q: %w", token, err)
		}
		key.texcoord = ti
		out.Texcoord = p.uvs[ti]
	} else if len(parts) > 1 && parts[1] != "" {
		if _, err := strconv.Atoi(parts[1]); err != nil {
			return key, out, fmt.Errorf("texcoord in %q: %w", token, ErrBadFaceIndex)
		}
	}

	if len(parts) > 2 && parts[2] != "" && len(p.normals) > 0 {
		ni, err := resolveIndex(parts[2], len(p.normals))
		if err != nil {
			return key, out, fmt.Errorf("normal in %q: %w", token, err)
		}
		key.normal = ni
		out.Normal = p.normals[ni]
	} else if len(parts) > 2 && parts[2] != "" {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return key, out, fmt.Errorf("normal in %q: %w", token, ErrBadFaceIndex)
		}
	}
	return key, out, nil
}

// resolveIndex turns a 1-based (or negative, relative) OBJ index into a
// 0-based slice index.
func resolveIndex(s string, count int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrBadFaceIndex)
	}
	switch {
	case n > 0 && n <= count:
		return n - 1, nil
	case n < 0 && -n <= count:
		return count + n, nil
	}
	return 0, fmt.Errorf("%d of %d: %w", n, count, ErrBadFaceIndex)
}

func parseFloats(fields []string, want int) ([]float32, error) {
	if len(fields) < want {
		return nil, fmt.Errorf("want %d values, got %d: %w", want, len(fields), ErrBadRecord)
	}
	out := make([]float32, want)
	for i := 0; i < want; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", fields[i], ErrBadRecord)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func parseVec3(fields []string) (math.Vec3, error) {
	f, err := parseFloats(fields, 3)
	if err != nil {
		return math.Vec3{}, err
	}
	return math.NewVec3(f[0], f[1], f[2]), nil
}

func parseVec2(fields []string) (math.Vec2, error) {
	f, err := parseFloats(fields, 2)
	if err != nil {
		return math.Vec2{}, err
	}
	return math.NewVec2(f[0], f[1]), nil
}
