package profile

import (
	"encoding/json"

	"fluxbatch/internal/domain"
)

// Name identifies a processing profile: the mapping from user intent to a
// specific remote model and the payload shape it expects.
type Name string

const (
	Canny    Name = "canny"
	Upscale  Name = "upscale"
	Generate Name = "generate"
)

// Pinned model versions. Replicate resolves jobs against the exact version
// hash, so bumping a model is a deliberate contract change.
const (
	modelFluxCanny = "black-forest-labs/flux-canny-dev:aeb2a8dbfe2580e25d41d8881cc1df1a0b1e52c87de99c1a65fc587ac3918179"
	modelFluxDev   = "black-forest-labs/flux-dev:6e4a938f85952bdabcc15aa329178c4d681c52bf25a0342403287dc26944661d"
	modelFluxPro   = "black-forest-labs/flux-1.1-pro:80a09d66baa990429c2f5ae8a4306bf778a1b3775afd01cc2cc8bdbe9033769c"
	modelComfyUI   = "fofr/any-comfyui-workflow:f552cf6bb263b2c7c547c3c7fb158aa4309794934bedc16c9aa395bee407744d"
)

// ModelVariant values accepted by the generate profile.
const (
	VariantFluxDev = "flux-dev"
	VariantFluxPro = "flux-pro-1.1"
)

// upscaleTemplate is the workflow document the upscale profile patches.
const upscaleTemplate = "upscale_workflow.json"

// Workflow node keys patched by the upscale builder. The template is a
// versioned external contract: these keys must track the shipped document.
const (
	nodeLoadImage = "40"
	nodeUpscaler  = "38"
	nodeLoraA     = "41"
	nodeLoraB     = "42"
)

// Spec describes one profile's static properties.
type Spec struct {
	Name Name
	// Tool is the provenance label recorded on gallery entries.
	Tool string
	// NeedsSource marks profiles that require an uploaded input image.
	NeedsSource bool
	// NeedsPrompt marks profiles that refuse to run with an empty prompt.
	NeedsPrompt bool
}

var specs = map[Name]Spec{
	Canny:    {Name: Canny, Tool: "Canny", NeedsSource: true, NeedsPrompt: true},
	Upscale:  {Name: Upscale, Tool: "FluxUpscale", NeedsSource: true},
	Generate: {Name: Generate, Tool: "FluxGenerate", NeedsPrompt: true},
}

// Lookup returns the spec for a profile name.
func Lookup(name Name) (Spec, error) {
	spec, ok := specs[name]
	if !ok {
		return Spec{}, domain.ErrUnknownProfile
	}
	return spec, nil
}

// Names lists the known profile names.
func Names() []Name {
	return []Name{Canny, Upscale, Generate}
}

// Request is the fully resolved submission payload for one job: the pinned
// model version and the model-specific input document.
type Request struct {
	Version string          `json:"version"`
	Input   json.RawMessage `json:"input"`
}

// Knobs are the user-tunable parameters. Zero values take the profile
// defaults; out-of-range values are clamped to the provider's accepted range.
type Knobs struct {
	Prompt string `json:"prompt"`

	// generate + canny
	Steps       int     `json:"steps,omitempty"`
	Guidance    float64 `json:"guidance,omitempty"`
	NumOutputs  int     `json:"num_outputs,omitempty"`
	AspectRatio string  `json:"aspect_ratio,omitempty"`

	// generate only
	Model string `json:"model,omitempty"`

	// upscale only
	TileSize       int     `json:"tile_size,omitempty"`
	DenoisePercent int     `json:"denoise,omitempty"`
	IPhoneLora     float64 `json:"iphone_lora,omitempty"`
	SkinLora       float64 `json:"skin_lora,omitempty"`
}
