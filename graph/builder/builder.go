// Package builder implements the graph builder (spec §4.11, C10): a pure
// function that materializes a GraphConfig's NodeSpecs into concrete node
// objects and validates the edge set, without starting anything. It lives
// outside package graph because it must import every node implementation
// package, each of which imports graph for the shared contracts.
package builder

import (
	"fmt"
	"log/slog"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/events"
	"github.com/aineurostream/synchro/graph"
	"github.com/aineurostream/synchro/graph/nodes/input"
	"github.com/aineurostream/synchro/graph/nodes/output"
	"github.com/aineurostream/synchro/graph/nodes/processors"
	"github.com/aineurostream/synchro/graph/nodes/translate"
)

// EventsCallback is the `events(node_name, context)` shape every node's
// publish hook is bound against (spec §6).
type EventsCallback func(nodeName, eventType string, payload events.Context)

// Build dispatches each NodeSpec to its matching constructor and validates
// the edge set, returning a name→Node map and the validated edge list. Apart
// from a measurer with a file sink, whose constructor opens that file, it
// performs no I/O: Acquire is the manager's job, not the builder's.
func Build(cfg graph.GraphConfig, settings graph.Settings, neural graph.NeuralConfig, eventsCb EventsCallback, workingDir string, log *slog.Logger) (map[string]graph.Node, []graph.Edge, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if eventsCb == nil {
		eventsCb = func(string, string, events.Context) {}
	}

	nodes := make(map[string]graph.Node, len(cfg.Nodes))
	for _, spec := range cfg.Nodes {
		publish := func(eventType string, payload events.Context) { eventsCb(spec.Name, eventType, payload) }

		n, err := buildNode(spec, neural, publish, workingDir, log)
		if err != nil {
			return nil, nil, err
		}
		nodes[spec.Name] = n
	}

	return nodes, cfg.Edges, nil
}

func buildNode(spec graph.NodeSpec, neural graph.NeuralConfig, publish func(string, events.Context), workingDir string, log *slog.Logger) (graph.Node, error) {
	switch spec.NodeType {
	case graph.NodeInputChannel:
		p := spec.InputChannel
		if p == nil {
			return nil, missingParams(spec)
		}
		return input.NewDeviceNode(spec.Name, p.Device, p.Channel, log), nil

	case graph.NodeInputFile:
		p := spec.InputFile
		if p == nil {
			return nil, missingParams(spec)
		}
		return input.NewFileNode(spec.Name, *p, workingDir, log), nil

	case graph.NodeOutputChannel:
		p := spec.OutputChannel
		if p == nil {
			return nil, missingParams(spec)
		}
		return output.NewDeviceNode(spec.Name, p.Device, p.Channel, log), nil

	case graph.NodeOutputFile:
		p := spec.OutputFile
		if p == nil {
			return nil, missingParams(spec)
		}
		return output.NewFileNode(spec.Name, p.Path, workingDir, log), nil

	case graph.NodeConverterSeamless:
		p := spec.ConverterSeamless
		if p == nil {
			return nil, missingParams(spec)
		}
		serverURL := p.ServerURL
		if serverURL == "" {
			serverURL = neural.DefaultServerURL
		}
		return translate.New(spec.Name, serverURL, p.LangFrom, p.LangTo, p.MonitorPath, log), nil

	case graph.NodeMixer:
		p := spec.Mixer
		if p == nil {
			return nil, missingParams(spec)
		}
		return processors.NewMixer(spec.Name, p.MinWorkingStepLengthSecs), nil

	case graph.NodeResampler:
		p := spec.Resampler
		if p == nil {
			return nil, missingParams(spec)
		}
		return processors.NewResampler(spec.Name, p.ToRate), nil

	case graph.NodeVAD:
		p := spec.VAD
		if p == nil {
			return nil, missingParams(spec)
		}
		return processors.NewVAD(spec.Name, p.Threshold, publish), nil

	case graph.NodeNormalizer:
		p := spec.Normalizer
		if p == nil {
			return nil, missingParams(spec)
		}
		return processors.NewNormalizer(spec.Name, p.Headroom), nil

	case graph.NodeDenoiser:
		p := spec.Denoiser
		if p == nil {
			return nil, missingParams(spec)
		}
		return processors.NewDenoiser(spec.Name, p.Threshold), nil

	case graph.NodeValidator:
		p := spec.Validator
		if p == nil {
			return nil, missingParams(spec)
		}
		target := p.EnforceFormat
		if target == audio.Invalid {
			target = audio.Int16
		}
		return processors.NewValidator(spec.Name, p.EnforceMono, target, p.PassthroughRate), nil

	case graph.NodePreparer:
		p := spec.Preparer
		if p == nil {
			return nil, missingParams(spec)
		}
		return processors.NewPreparer(spec.Name, *p), nil

	case graph.NodeMeasurer:
		p := spec.Measurer
		if p == nil {
			return nil, missingParams(spec)
		}
		return processors.NewMeasurer(spec.Name, *p, log), nil

	default:
		return nil, &graph.ConfigError{Reason: fmt.Sprintf("node %q: unknown node_type %q", spec.Name, spec.NodeType)}
	}
}

func missingParams(spec graph.NodeSpec) error {
	return &graph.ConfigError{Reason: fmt.Sprintf("node %q: node_type %q declared without matching params", spec.Name, spec.NodeType)}
}
