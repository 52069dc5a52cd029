package builder

import (
	"path/filepath"
	"testing"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/events"
	"github.com/aineurostream/synchro/graph"
)

func TestBuildDispatchesEachNodeType(t *testing.T) {
	cfg := graph.GraphConfig{
		Nodes: []graph.NodeSpec{
			{Name: "mic", NodeType: graph.NodeInputFile, InputFile: &graph.InputFileParams{Path: "in.wav"}},
			{Name: "gain", NodeType: graph.NodeNormalizer, Normalizer: &graph.NormalizerParams{Headroom: 10}},
			{Name: "wav-out", NodeType: graph.NodeOutputFile, OutputFile: &graph.OutputFileParams{Path: filepath.Join("$WORKING_DIR", "out.wav")}},
		},
		Edges: []graph.Edge{
			{Source: "mic", Target: "gain"},
			{Source: "gain", Target: "wav-out"},
		},
	}

	nodes, edges, err := Build(cfg, graph.DefaultSettings(), graph.NeuralConfig{}, nil, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	for _, name := range []string{"mic", "gain", "wav-out"} {
		if _, ok := nodes[name]; !ok {
			t.Errorf("missing node %q in build output", name)
		}
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := graph.GraphConfig{
		Nodes: []graph.NodeSpec{
			{Name: "ab", NodeType: graph.NodeNormalizer, Normalizer: &graph.NormalizerParams{}},
		},
	}
	if _, _, err := Build(cfg, graph.DefaultSettings(), graph.NeuralConfig{}, nil, t.TempDir(), nil); err == nil {
		t.Fatal("expected a ConfigError for a too-short node name")
	}
}

func TestBuildRejectsUnknownNodeType(t *testing.T) {
	cfg := graph.GraphConfig{
		Nodes: []graph.NodeSpec{
			{Name: "mystery", NodeType: "nonexistent"},
		},
	}
	if _, _, err := Build(cfg, graph.DefaultSettings(), graph.NeuralConfig{}, nil, t.TempDir(), nil); err == nil {
		t.Fatal("expected a ConfigError for an unknown node_type")
	}
}

func TestEventsCallbackReceivesNodeName(t *testing.T) {
	var gotNode, gotType string
	cb := func(nodeName, eventType string, payload events.Context) {
		gotNode, gotType = nodeName, eventType
	}

	cfg := graph.GraphConfig{
		Nodes: []graph.NodeSpec{
			{Name: "voice-activity", NodeType: graph.NodeVAD, VAD: &graph.VADParams{Threshold: 500}},
		},
	}
	nodes, _, err := Build(cfg, graph.DefaultSettings(), graph.NeuralConfig{}, cb, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	type receiver interface {
		Receive(source string, f audio.Frame) error
	}
	v, ok := nodes["voice-activity"].(receiver)
	if !ok {
		t.Fatalf("expected a VAD receiver node, got %#v", nodes["voice-activity"])
	}
	if err := v.Receive("mic", audio.FrameFromInt16(make([]int16, 160), 16000, 1)); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if gotNode != "voice-activity" || gotType != "vad" {
		t.Fatalf("expected callback bound to (voice-activity, vad), got (%q, %q)", gotNode, gotType)
	}
}
