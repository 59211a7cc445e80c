package metadata

/** @brief Which faces are culled by the rasterizer. */
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

/** @brief Primitive assembly mode. Only triangle lists are drawn. */
type Topology int

const (
	TopologyTriangleList Topology = iota
)

/** @brief Shader stages a binding is visible to. */
type ShaderStage int

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

/** @brief Kind of a shader-visible binding. */
type BindingType int

const (
	BindingTypeUniformBuffer BindingType = iota
	BindingTypeSampledTexture
	BindingTypeSampler
)

/**
 * @brief One slot of the binding signature.
 */
type Binding struct {
	Group   uint32
	Binding uint32
	Type    BindingType
	Stages  ShaderStage
}

const (
	FrameConstantsGroup = 0
	TextureGroup        = 1
)

// BindingLayout is the signature every mesh pipeline is built with: the
// frame constants for the vertex stage, then a texture and its sampler for
// the fragment stage.
func BindingLayout() []Binding {
	return []Binding{
		{Group: FrameConstantsGroup, Binding: 0, Type: BindingTypeUniformBuffer, Stages: ShaderStageVertex},
		{Group: TextureGroup, Binding: 0, Type: BindingTypeSampledTexture, Stages: ShaderStageFragment},
		{Group: TextureGroup, Binding: 1, Type: BindingTypeSampler, Stages: ShaderStageFragment},
	}
}

/** @brief Sampler filtering. */
type FilterMode int

const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

/** @brief Sampler addressing. */
type AddressMode int

const (
	AddressModeRepeat AddressMode = iota
	AddressModeClampToEdge
)

type SamplerDesc struct {
	Filter  FilterMode
	Address AddressMode
}

/**
 * @brief Everything that identifies a graphics pipeline. The struct is a
 * value: a different field means a different pipeline object.
 */
type PipelineDesc struct {
	Name          string
	SPIRV         []uint32
	VertexEntry   string
	FragmentEntry string
	VertexStride  uint32
	Attributes    []VertexAttribute
	Bindings      []Binding
	Sampler       SamplerDesc
	CullMode      CullMode
	BlendEnabled  bool
	DepthTest     bool
	Topology      Topology
}
