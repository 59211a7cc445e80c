package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/usu/engine/assets"
	"github.com/spaghettifunk/usu/engine/config"
	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/math"
	"github.com/spaghettifunk/usu/engine/renderer/components"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// Scene is what the engine draws: one mesh, the shader it is drawn with and
// an optional texture.
type Scene struct {
	Mesh         *metadata.Mesh
	PipelineName string
	ShaderPath   string
	ShaderSource string
	Texture      *metadata.ImageData
	TextureName  string

	camera *components.Camera
	center math.Vec3
}

// LoadScene reads the configured assets. A mesh that cannot be read falls
// back to the default triangle; a texture that cannot be read is skipped.
// The shader is required.
func LoadScene(am *assets.AssetManager, cfg config.Config) (*Scene, error) {
	scene := &Scene{
		PipelineName: strings.TrimSuffix(filepath.Base(cfg.Assets.Shader), filepath.Ext(cfg.Assets.Shader)),
	}

	res, err := am.LoadAsset(cfg.Assets.Shader, metadata.ResourceTypeShader, nil)
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	scene.ShaderPath = res.FullPath
	scene.ShaderSource = res.Data.(string)

	scene.Mesh = loadMesh(am, cfg.Assets.Mesh)

	if cfg.Assets.Texture != "" {
		if typ, ok := assets.DetermineAssetType(cfg.Assets.Texture); !ok || typ != metadata.ResourceTypeImage {
			core.LogWarn("Texture '%s' has an unsupported extension, skipping.", cfg.Assets.Texture)
		} else if res, err := am.LoadAsset(cfg.Assets.Texture, metadata.ResourceTypeImage, nil); err != nil {
			core.LogWarn("Texture '%s' not loaded, using white: %s", cfg.Assets.Texture, err)
		} else {
			scene.Texture = res.Data.(*metadata.ImageData)
			scene.TextureName = res.Name
		}
	}

	bounds := scene.Mesh.Extents()
	scene.center = bounds.Center()
	scene.camera = components.NewCamera(cfg.Renderer.FieldOfView, cfg.Renderer.Near, cfg.Renderer.Far, bounds.Radius())
	return scene, nil
}

func loadMesh(am *assets.AssetManager, path string) *metadata.Mesh {
	if path == "" {
		return metadata.DefaultTriangle()
	}
	res, err := am.LoadAsset(path, metadata.ResourceTypeMesh, nil)
	if err != nil {
		if errors.Is(err, assets.ErrAssetNotFound) {
			core.LogWarn("Mesh '%s' not found, drawing the default triangle.", path)
		} else {
			core.LogWarn("Mesh '%s' rejected, drawing the default triangle: %s", path, err)
		}
		return metadata.DefaultTriangle()
	}
	return res.Data.(*metadata.Mesh)
}

// ModelViewProjection centres the mesh, scales it, turns it about Y and
// projects it for the given aspect ratio.
func (s *Scene) ModelViewProjection(scale, yaw, aspect float32) math.Mat4 {
	model := math.NewMat4Translation(s.center.MulScalar(-1)).
		Mul(math.NewMat4Scale(math.NewVec3(scale, scale, scale))).
		Mul(math.NewMat4EulerY(yaw))
	return model.Mul(s.camera.GetView()).Mul(s.camera.Projection(aspect))
}
