package loaders

import (
	"os"

	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

// ShaderLoader reads WGSL source text; compilation happens in the renderer.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		ID:       core.NewResourceID(),
		Type:     metadata.ResourceTypeShader,
		Name:     path,
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     string(data),
	}, nil
}

func (sl *ShaderLoader) Unload(*metadata.Resource) error {
	return nil
}
