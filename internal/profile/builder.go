package profile

import (
	"encoding/json"
	"fmt"
	"strings"

	"fluxbatch/internal/domain"
)

// Builder maps a profile plus user knobs into the exact request payload the
// remote model expects. Build is pure: identical inputs yield byte-identical
// payloads, and returned documents never share memory with the cached
// workflow templates.
type Builder struct {
	templates *TemplateLoader
}

func NewBuilder(templates *TemplateLoader) *Builder {
	return &Builder{templates: templates}
}

type cannyInput struct {
	ControlImage string  `json:"control_image"`
	Prompt       string  `json:"prompt"`
	OutputFormat string  `json:"output_format"`
	Guidance     float64 `json:"guidance"`
	Steps        int     `json:"num_inference_steps"`
	NumOutputs   int     `json:"num_outputs"`
	Megapixels   string  `json:"megapixels"`
}

type fluxDevInput struct {
	Prompt       string  `json:"prompt"`
	Guidance     float64 `json:"guidance"`
	NumOutputs   int     `json:"num_outputs"`
	AspectRatio  string  `json:"aspect_ratio"`
	Megapixels   string  `json:"megapixels"`
	Steps        int     `json:"num_inference_steps"`
	OutputFormat string  `json:"output_format"`
	Quality      int     `json:"output_quality"`
}

type fluxProInput struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	OutputFormat    string `json:"output_format"`
	Quality         int    `json:"output_quality"`
	SafetyTolerance int    `json:"safety_tolerance"`
	PromptUpsample  bool   `json:"prompt_upsampling"`
}

type workflowInput struct {
	WorkflowJSON string `json:"workflow_json"`
}

// Build resolves the request payload for one job submission. assetURL is the
// uploaded source image; it must be non-empty for profiles that transform an
// input image and is ignored otherwise.
func (b *Builder) Build(name Name, knobs Knobs, assetURL string) (*Request, error) {
	spec, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(knobs.Prompt)
	if spec.NeedsPrompt && prompt == "" {
		return nil, fmt.Errorf("profile %s: prompt is required", name)
	}
	if spec.NeedsSource && strings.TrimSpace(assetURL) == "" {
		return nil, fmt.Errorf("profile %s: source image url is required", name)
	}

	switch name {
	case Canny:
		return b.buildCanny(knobs, prompt, assetURL)
	case Generate:
		return b.buildGenerate(knobs, prompt)
	case Upscale:
		return b.buildUpscale(knobs, assetURL)
	}
	return nil, domain.ErrUnknownProfile
}

func (b *Builder) buildCanny(knobs Knobs, prompt, assetURL string) (*Request, error) {
	input := cannyInput{
		ControlImage: assetURL,
		Prompt:       prompt,
		OutputFormat: "jpg",
		Guidance:     clampFloat(knobs.Guidance, 0, 100, 30),
		Steps:        clampInt(knobs.Steps, 1, 50, 28),
		NumOutputs:   clampInt(knobs.NumOutputs, 1, 4, 1),
		Megapixels:   "1",
	}
	return encodeRequest(modelFluxCanny, input)
}

func (b *Builder) buildGenerate(knobs Knobs, prompt string) (*Request, error) {
	aspect := strings.TrimSpace(knobs.AspectRatio)
	if aspect == "" {
		aspect = "1:1"
	}
	switch knobs.Model {
	case "", VariantFluxDev:
		input := fluxDevInput{
			Prompt:       prompt,
			Guidance:     clampFloat(knobs.Guidance, 0, 100, 3),
			NumOutputs:   clampInt(knobs.NumOutputs, 1, 4, 1),
			AspectRatio:  aspect,
			Megapixels:   "1",
			Steps:        clampInt(knobs.Steps, 1, 50, 30),
			OutputFormat: "jpg",
			Quality:      100,
		}
		return encodeRequest(modelFluxDev, input)
	case VariantFluxPro:
		input := fluxProInput{
			Prompt:          prompt,
			AspectRatio:     aspect,
			OutputFormat:    "jpg",
			Quality:         100,
			SafetyTolerance: 2,
			PromptUpsample:  false,
		}
		return encodeRequest(modelFluxPro, input)
	}
	return nil, fmt.Errorf("profile generate: unknown model variant %q", knobs.Model)
}

// buildUpscale deep-patches the workflow-graph template: a fresh document is
// unmarshaled per call so repeated builds never contaminate each other or the
// cached template.
func (b *Builder) buildUpscale(knobs Knobs, assetURL string) (*Request, error) {
	raw, err := b.templates.Load(upscaleTemplate)
	if err != nil {
		return nil, err
	}
	var workflow map[string]json.RawMessage
	if err := json.Unmarshal(raw, &workflow); err != nil {
		return nil, fmt.Errorf("decode workflow template: %w", err)
	}

	tile := clampInt(knobs.TileSize, 256, 2048, 1024)
	if err := patchNode(workflow, nodeLoadImage, map[string]any{
		"image": assetURL,
	}); err != nil {
		return nil, err
	}
	if err := patchNode(workflow, nodeUpscaler, map[string]any{
		"tile_width":  tile,
		"tile_height": tile,
		"steps":       clampInt(knobs.Steps, 1, 50, 20),
		"denoise":     float64(clampInt(knobs.DenoisePercent, 0, 100, 30)) / 100,
	}); err != nil {
		return nil, err
	}
	if err := patchNode(workflow, nodeLoraA, map[string]any{
		"strength_model": clampFloat(knobs.IPhoneLora, 0, 2, 0.4),
	}); err != nil {
		return nil, err
	}
	if err := patchNode(workflow, nodeLoraB, map[string]any{
		"strength_model": clampFloat(knobs.SkinLora, 0, 2, 1),
	}); err != nil {
		return nil, err
	}

	patched, err := json.Marshal(workflow)
	if err != nil {
		return nil, fmt.Errorf("encode patched workflow: %w", err)
	}
	return encodeRequest(modelComfyUI, workflowInput{WorkflowJSON: string(patched)})
}

// patchNode overwrites fields inside a node's "inputs" object, leaving every
// other field of the node untouched.
func patchNode(workflow map[string]json.RawMessage, key string, fields map[string]any) error {
	rawNode, ok := workflow[key]
	if !ok {
		return fmt.Errorf("workflow template missing node %q", key)
	}
	var node map[string]json.RawMessage
	if err := json.Unmarshal(rawNode, &node); err != nil {
		return fmt.Errorf("decode workflow node %q: %w", key, err)
	}
	var inputs map[string]any
	if rawInputs, ok := node["inputs"]; ok {
		if err := json.Unmarshal(rawInputs, &inputs); err != nil {
			return fmt.Errorf("decode inputs of node %q: %w", key, err)
		}
	}
	if inputs == nil {
		return fmt.Errorf("workflow node %q has no inputs", key)
	}
	for k, v := range fields {
		inputs[k] = v
	}
	encodedInputs, err := json.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("encode inputs of node %q: %w", key, err)
	}
	node["inputs"] = encodedInputs
	encodedNode, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode workflow node %q: %w", key, err)
	}
	workflow[key] = encodedNode
	return nil
}

func encodeRequest(version string, input any) (*Request, error) {
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode model input: %w", err)
	}
	return &Request{Version: version, Input: encoded}, nil
}

func clampInt(v, min, max, fallback int) int {
	if v == 0 {
		return fallback
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampFloat(v, min, max, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
