package graph

import (
	"fmt"
	"os"
	"strings"

	"github.com/aineurostream/synchro/audio"
	"gopkg.in/yaml.v3"
)

// NodeType is the closed set of node kinds a NodeSpec may declare (spec §6).
type NodeType string

const (
	NodeInputChannel      NodeType = "input_channel"
	NodeInputFile         NodeType = "input_file"
	NodeOutputChannel     NodeType = "output_channel"
	NodeOutputFile        NodeType = "output_file"
	NodeConverterSeamless NodeType = "converter_seamless"
	NodeMixer             NodeType = "mixer"
	NodeResampler         NodeType = "resampler"
	NodeVAD               NodeType = "vad"
	NodeNormalizer        NodeType = "normalizer"
	NodeDenoiser          NodeType = "denoiser"
	NodeValidator         NodeType = "validator"
	NodePreparer          NodeType = "preparer"
	NodeMeasurer          NodeType = "measurer"
)

// InputChannelParams configures an `input_channel` node.
type InputChannelParams struct {
	Device  int `yaml:"device"`
	Channel int `yaml:"channel"`
}

// InputFileParams configures an `input_file` node.
type InputFileParams struct {
	Path               string  `yaml:"path"`
	Looping            bool    `yaml:"looping"`
	Delay              float64 `yaml:"delay"`
	Start              int     `yaml:"start"`              // sample offset into the source where playback begins
	Duration           *int    `yaml:"duration"`            // reserved, see spec §9 Open Questions
	Channels           *int    `yaml:"channels"`
	EnforceFloat32     bool    `yaml:"enforce_float32"`
	MonoStrategy       string  `yaml:"mono_strategy"` // "mean" | "select"
	SelectChannelIndex int     `yaml:"select_channel_index"`
}

// OutputChannelParams configures an `output_channel` node.
type OutputChannelParams struct {
	Device  int `yaml:"device"`
	Channel int `yaml:"channel"`
}

// OutputFileParams configures an `output_file` node. Path may contain a
// $WORKING_DIR placeholder substituted by the builder.
type OutputFileParams struct {
	Path string `yaml:"path"`
}

// ConverterSeamlessParams configures a `converter_seamless` translation
// connector node.
type ConverterSeamlessParams struct {
	ServerURL string `yaml:"server_url"`
	LangFrom  string `yaml:"lang_from"`
	LangTo    string `yaml:"lang_to"`

	// MonitorPath, if set, asks the connector to Opus-encode a copy of the
	// incoming stream to this file for local playback review.
	MonitorPath string `yaml:"monitor_path"`
}

// MixerParams configures a `mixer` node.
type MixerParams struct {
	MinWorkingStepLengthSecs float64 `yaml:"min_working_step_length_secs"`
}

// ResamplerParams configures a `resampler` node.
type ResamplerParams struct {
	ToRate int `yaml:"to_rate"`
}

// VADParams configures a `vad` node.
type VADParams struct {
	Threshold int `yaml:"threshold"`
}

// NormalizerParams configures a `normalizer` node.
type NormalizerParams struct {
	Headroom float64 `yaml:"headroom"`
}

// DenoiserParams configures a `denoiser` node.
type DenoiserParams struct {
	Threshold float64 `yaml:"threshold"`
}

// ValidatorParams configures a `validator` node.
type ValidatorParams struct {
	EnforceMono    bool          `yaml:"enforce_mono"`
	EnforceFormat  audio.Format  `yaml:"-"`
	EnforceFormatS string        `yaml:"enforce_format"`
	PassthroughRate bool         `yaml:"passthrough_rate"`
}

// PreparerParams configures a `preparer` (WhisperPrep) node.
type PreparerParams struct {
	MinBufferSec     float64 `yaml:"min_buffer_sec"`
	KeepContextSec   float64 `yaml:"keep_context_sec"`
	EnableWPE        bool    `yaml:"enable_wpe"`
	EnableNormalize  bool    `yaml:"enable_normalize"`
	EnableLimiter    bool    `yaml:"enable_limiter"`
	EnableFilters    bool    `yaml:"enable_filters"`
	HeadroomDB       float64 `yaml:"headroom_db"`
	TruePeakDBFS     float64 `yaml:"true_peak_dbfs"`
	HPFHz            float64 `yaml:"hpf_hz"`
	LPFRatioToNyquist float64 `yaml:"lpf_ratio_to_nyquist"`
	FilterOrder      int     `yaml:"filter_order"`
	RequireFloat32   bool    `yaml:"require_float32"`
}

// MeasurerParams configures a `measurer` level-meter node.
type MeasurerParams struct {
	RefreshHz         float64 `yaml:"refresh_hz"`
	WindowSeconds     float64 `yaml:"window_seconds"`
	BarHeight         int     `yaml:"bar_height"`
	ClipThresholdFloat float64 `yaml:"clip_threshold_float"`
	Sink              string  `yaml:"sink"` // "stdout" | "stderr" | "file"
	SinkPath          string  `yaml:"sink_path"`
}

// NodeSpec is the tagged-union description of one graph node, as read from
// a GraphConfig. Exactly one of the typed Params pointers is populated,
// matching NodeType.
type NodeSpec struct {
	Name     string
	NodeType NodeType

	InputChannel      *InputChannelParams
	InputFile         *InputFileParams
	OutputChannel     *OutputChannelParams
	OutputFile        *OutputFileParams
	ConverterSeamless *ConverterSeamlessParams
	Mixer             *MixerParams
	Resampler         *ResamplerParams
	VAD               *VADParams
	Normalizer        *NormalizerParams
	Denoiser          *DenoiserParams
	Validator         *ValidatorParams
	Preparer          *PreparerParams
	Measurer          *MeasurerParams
}

// UnmarshalYAML implements the tagged-union decode: it reads node_type
// first, then re-decodes the same YAML node into the matching typed Params
// struct. Unknown node_type values become a ConfigError in builder.Build
// rather than here (Validate does not check node types), matching the
// builder's exhaustive dispatch.
func (n *NodeSpec) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Name     string   `yaml:"name"`
		NodeType NodeType `yaml:"node_type"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}
	n.Name = head.Name
	n.NodeType = head.NodeType

	switch head.NodeType {
	case NodeInputChannel:
		p := &InputChannelParams{Channel: 1}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.InputChannel = p
	case NodeInputFile:
		p := &InputFileParams{Looping: true, EnforceFloat32: true, MonoStrategy: "mean"}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.InputFile = p
	case NodeOutputChannel:
		p := &OutputChannelParams{Channel: 1}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.OutputChannel = p
	case NodeOutputFile:
		p := &OutputFileParams{}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.OutputFile = p
	case NodeConverterSeamless:
		p := &ConverterSeamlessParams{}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.ConverterSeamless = p
	case NodeMixer:
		p := &MixerParams{MinWorkingStepLengthSecs: 1.0}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.Mixer = p
	case NodeResampler:
		p := &ResamplerParams{}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.Resampler = p
	case NodeVAD:
		p := &VADParams{Threshold: 1000}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.VAD = p
	case NodeNormalizer:
		p := &NormalizerParams{Headroom: 10.0}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.Normalizer = p
	case NodeDenoiser:
		p := &DenoiserParams{Threshold: 0.5}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.Denoiser = p
	case NodeValidator:
		p := &ValidatorParams{EnforceMono: true, PassthroughRate: true}
		if err := value.Decode(p); err != nil {
			return err
		}
		if p.EnforceFormatS != "" {
			p.EnforceFormat = parseFormat(p.EnforceFormatS)
		}
		n.Validator = p
	case NodePreparer:
		p := &PreparerParams{
			MinBufferSec:      0.5,
			KeepContextSec:    1.0,
			LPFRatioToNyquist: 0.9,
			FilterOrder:       4,
			RequireFloat32:    true,
		}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.Preparer = p
	case NodeMeasurer:
		p := &MeasurerParams{RefreshHz: 10, WindowSeconds: 0.1, BarHeight: 1, Sink: "stdout"}
		if err := value.Decode(p); err != nil {
			return err
		}
		n.Measurer = p
	default:
		// Unknown node_type: leave Params unset; builder.Build raises the
		// ConfigError so the error carries node-name context.
	}
	return nil
}

func parseFormat(s string) audio.Format {
	switch s {
	case "INT8":
		return audio.Int8
	case "INT16":
		return audio.Int16
	case "INT24":
		return audio.Int24
	case "INT32":
		return audio.Int32
	case "FLOAT32":
		return audio.Float32
	default:
		return audio.Invalid
	}
}

// GraphConfig is the declarative description of the processing graph:
// nodes plus directed edges between them (spec §3/§6).
type GraphConfig struct {
	Nodes []NodeSpec `yaml:"nodes"`
	Edges []Edge     `yaml:"edges"`
}

// UnmarshalYAML decodes edges from their wire form `[source, target]` pairs
// into Edge structs.
func (g *GraphConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Nodes []NodeSpec  `yaml:"nodes"`
		Edges [][2]string `yaml:"edges"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	g.Nodes = raw.Nodes
	g.Edges = make([]Edge, len(raw.Edges))
	for i, e := range raw.Edges {
		g.Edges[i] = Edge{Source: e[0], Target: e[1]}
	}
	return nil
}

// QualityMetric names a node whose output is scored against expected
// transcription/translation text for quality reporting (an external
// collaborator outside this module's scope; carried through untouched).
type QualityMetric struct {
	Node                  string  `yaml:"node"`
	ExpectedTranscription string  `yaml:"expected_transcription"`
	ExpectedTranslation   string  `yaml:"expected_translation"`
	Weight                float64 `yaml:"weight"`
}

// Limits bounds the graph's wall-clock run time.
type Limits struct {
	RunTimeSeconds float64 `yaml:"run_time_seconds"`
}

// Metrics groups quality-reporting configuration.
type Metrics struct {
	Quality []QualityMetric `yaml:"quality"`
}

// Settings is the top-level engine configuration (spec §6).
type Settings struct {
	Name                  string  `yaml:"name"`
	InputIntervalSecs     float64 `yaml:"input_interval_secs"`
	ProcessorIntervalSecs float64 `yaml:"processor_interval_secs"`
	Limits                Limits  `yaml:"limits"`
	Metrics               Metrics `yaml:"metrics"`
}

// NeuralConfig carries defaults for nodes that talk to a remote model, so a
// GraphConfig's per-node params can omit them and fall back to the run's
// shared configuration (spec §4.11).
type NeuralConfig struct {
	DefaultServerURL string `yaml:"default_server_url"`
}

// DefaultSettings returns the documented defaults from spec §6.
func DefaultSettings() Settings {
	return Settings{
		InputIntervalSecs:     0.3,
		ProcessorIntervalSecs: 0.016,
	}
}

// RunConfig is the single on-disk YAML document a run is launched from: the
// graph's nodes/edges, its settings, and the neural defaults, all as
// top-level keys of the same document (spec §6 "Graph config"/"Settings").
// GraphConfig and Settings are decoded independently from the same bytes
// since each only reads the keys it knows and ignores the rest.
type RunConfig struct {
	Graph    GraphConfig
	Settings Settings
	Neural   NeuralConfig
}

// LoadRunConfig reads path, decodes it into a RunConfig, applies
// DefaultSettings for any zero-valued interval, substitutes $WORKING_DIR in
// output_file paths, and validates the resulting graph.
func LoadRunConfig(path, workingDir string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, &ConfigError{Reason: fmt.Sprintf("read %s: %v", path, err)}
	}

	var rc RunConfig
	if err := yaml.Unmarshal(data, &rc.Graph); err != nil {
		return RunConfig{}, &ConfigError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if err := yaml.Unmarshal(data, &rc.Settings); err != nil {
		return RunConfig{}, &ConfigError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if err := yaml.Unmarshal(data, &rc.Neural); err != nil {
		return RunConfig{}, &ConfigError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}

	defaults := DefaultSettings()
	if rc.Settings.InputIntervalSecs == 0 {
		rc.Settings.InputIntervalSecs = defaults.InputIntervalSecs
	}
	if rc.Settings.ProcessorIntervalSecs == 0 {
		rc.Settings.ProcessorIntervalSecs = defaults.ProcessorIntervalSecs
	}

	for i, n := range rc.Graph.Nodes {
		if n.OutputFile != nil {
			rc.Graph.Nodes[i].OutputFile.Path = substituteWorkingDir(n.OutputFile.Path, workingDir)
		}
	}

	if err := rc.Graph.Validate(); err != nil {
		return RunConfig{}, err
	}
	return rc, nil
}

func substituteWorkingDir(path, workingDir string) string {
	if workingDir == "" {
		return path
	}
	return strings.ReplaceAll(path, "$WORKING_DIR", workingDir)
}

// Validate checks the GraphConfig invariants from spec §3: edge endpoints
// reference existing nodes, no duplicate edges, input nodes have no
// incoming edge, output nodes have no outgoing edge.
func (g GraphConfig) Validate() error {
	names := make(map[string]NodeSpec, len(g.Nodes))
	for _, n := range g.Nodes {
		if err := ValidateNodeName(n.Name); err != nil {
			return err
		}
		if _, dup := names[n.Name]; dup {
			return &ConfigError{Reason: fmt.Sprintf("duplicate node name %q", n.Name)}
		}
		names[n.Name] = n
	}

	seenEdges := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if _, ok := names[e.Source]; !ok {
			return &ConfigError{Reason: fmt.Sprintf("edge %s references unknown source node", e.ID())}
		}
		if _, ok := names[e.Target]; !ok {
			return &ConfigError{Reason: fmt.Sprintf("edge %s references unknown target node", e.ID())}
		}
		key := e.Source + "\x00" + e.Target
		if seenEdges[key] {
			return &ConfigError{Reason: fmt.Sprintf("duplicate edge %s", e.ID())}
		}
		seenEdges[key] = true
	}

	hasIncoming := make(map[string]bool)
	hasOutgoing := make(map[string]bool)
	for _, e := range g.Edges {
		hasOutgoing[e.Source] = true
		hasIncoming[e.Target] = true
	}

	for _, n := range g.Nodes {
		if isInputType(n.NodeType) && hasIncoming[n.Name] {
			return &ConfigError{Reason: fmt.Sprintf("input node %q has an incoming edge", n.Name)}
		}
		if isOutputType(n.NodeType) && hasOutgoing[n.Name] {
			return &ConfigError{Reason: fmt.Sprintf("output node %q has an outgoing edge", n.Name)}
		}
	}
	return nil
}

func isInputType(t NodeType) bool {
	return t == NodeInputChannel || t == NodeInputFile
}

func isOutputType(t NodeType) bool {
	return t == NodeOutputChannel || t == NodeOutputFile
}
