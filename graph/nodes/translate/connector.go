// Package translate implements the full-duplex connector node (spec §4.10):
// a receiver-emitter holding a long-lived session to a remote streaming
// translation model, modeled on the teacher's Transport — a mutex-guarded
// connection with a background read loop and a typed control-message
// protocol — but speaking the room/dynamic-config/stream-configure
// handshake the translation backend expects instead of the voice-chat wire
// format.
package translate

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gopkg.in/hraban/opus.v2"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/graph"
)

// State is the connector's connection lifecycle (spec §4.10).
type State int

const (
	Disconnected State = iota
	Connecting
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Ready:
		return "READY"
	case Error:
		return "ERROR"
	default:
		return "DISCONNECTED"
	}
}

// languagesMap translates ISO 639-1 tags to the backend's expected codes.
// Unknown languages fail at acquire (spec §4.10).
var languagesMap = map[string]string{
	"en": "eng",
	"ru": "rus",
}

const (
	int16Max      = 32767
	pollTimeout   = 10 * time.Millisecond
	reconnectBase = 250 * time.Millisecond
	reconnectMax  = 10 * time.Second

	// streamingModelName names the remote streaming model configure_stream
	// selects, matching the backend's only deployed model.
	streamingModelName = "SeamlessStreaming"
)

// sourceLanguageCode translates lang to the backend's code via languagesMap,
// falling back to the raw tag unchanged: unlike the target language, an
// unmapped source language is not fatal (spec §4.10).
func sourceLanguageCode(lang string) string {
	if code, ok := languagesMap[lang]; ok {
		return code
	}
	return lang
}

// wireMessage is the JSON envelope exchanged with the backend: {"event":
// ..., "data": ...} outbound, {"event": ..., "data": ...} inbound.
type wireMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type translationSpeech struct {
	SampleRate int       `json:"sample_rate"`
	Payload    []float64 `json:"payload"`
}

// Connector is the graph.Node implementing the translation connector.
type Connector struct {
	name      string
	serverURL string
	langFrom  string
	langTo    string
	log       *slog.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	userID string
	roomID string

	pending []byte // bytes accumulated since the last send to the backend

	accum []byte // decoded translation_speech bytes awaiting emit

	monitorPath string
	monitor     *opusMonitor
}

// New returns an unacquired Connector for the given node name. If
// monitorPath is non-empty, Acquire also opens a local Opus-encoded tap of
// the incoming stream at that path.
func New(name, serverURL, langFrom, langTo, monitorPath string, log *slog.Logger) *Connector {
	if log == nil {
		log = slog.Default()
	}
	return &Connector{
		name:        name,
		serverURL:   serverURL,
		langFrom:    langFrom,
		langTo:      langTo,
		log:         log,
		state:       Disconnected,
		userID:      uuid.NewString(),
		roomID:      uuid.NewString()[:4],
		monitorPath: monitorPath,
	}
}

func (c *Connector) Name() string { return c.name }

// Acquire connects, joins a room, configures the target language, and
// configures the audio stream, per spec §4.10 step 1.
func (c *Connector) Acquire(ctx context.Context) error {
	if _, ok := languagesMap[c.langTo]; !ok {
		return &graph.ConfigError{Reason: fmt.Sprintf("translate[%s]: unsupported target language %q", c.name, c.langTo)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Connecting

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		c.state = Error
		return &graph.ResourceError{Node: c.name, Err: fmt.Errorf("dial %s: %w", c.serverURL, err)}
	}
	c.conn = conn

	if err := c.joinRoomWithBackoff(ctx); err != nil {
		c.state = Error
		return err
	}
	if err := c.send("set_dynamic_config", map[string]any{
		"source_language": sourceLanguageCode(c.langFrom),
		"target_language": languagesMap[c.langTo],
	}); err != nil {
		c.state = Error
		return err
	}
	if err := c.send("configure_stream", map[string]any{
		"rate":             16000,
		"model":            streamingModelName,
		"async_processing": true,
		"buffer_limit":     1,
	}); err != nil {
		c.state = Error
		return err
	}

	if c.monitorPath != "" {
		mon, err := newOpusMonitor(c.monitorPath)
		if err != nil {
			c.log.Warn("monitor tap disabled", "component", "translate", "node", c.name, "err", err)
		} else {
			c.monitor = mon
		}
	}

	c.state = Ready
	c.log.Debug("connector ready", "component", "translate", "node", c.name)
	return nil
}

// maxJoinRoomAttempts bounds join_room retry, matching the original
// connector's capped exponential backoff before it gives up and surfaces a
// ResourceError.
const maxJoinRoomAttempts = 5

// joinRoomWithBackoff retries the join_room handshake with exponential
// backoff (reconnectBase, doubling, capped at reconnectMax) up to
// maxJoinRoomAttempts times before giving up.
func (c *Connector) joinRoomWithBackoff(ctx context.Context) error {
	backoff := reconnectBase
	var lastErr error
	for attempt := 1; attempt <= maxJoinRoomAttempts; attempt++ {
		lastErr = c.send("join_room", map[string]any{
			"user_id": c.userID,
			"room_id": c.roomID,
			"roles":   []string{"speaker", "listener"},
		})
		if lastErr == nil {
			return nil
		}
		if attempt == maxJoinRoomAttempts {
			break
		}
		c.log.Warn("join_room failed, retrying", "component", "translate", "node", c.name, "attempt", attempt, "err", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
	return &graph.ResourceError{Node: c.name, Err: fmt.Errorf("join_room: %d attempts failed: %w", maxJoinRoomAttempts, lastErr)}
}

// Release disconnects cleanly, per spec §4.10 step 4.
func (c *Connector) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Disconnected
	if c.monitor != nil {
		if err := c.monitor.Close(); err != nil {
			c.log.Warn("monitor close", "component", "translate", "node", c.name, "err", err)
		}
		c.monitor = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Connector) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("translate[%s]: marshal %s: %w", c.name, event, err)
	}
	msg := wireMessage{Event: event, Data: payload}
	if err := c.conn.WriteJSON(msg); err != nil {
		return &graph.ProtocolError{Node: c.name, Err: fmt.Errorf("send %s: %w", event, err)}
	}
	return nil
}

// Receive concatenates incoming audio bytes and forwards them to the
// backend as an incoming_audio event (spec §4.10 step 2).
func (c *Connector) Receive(source string, f audio.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.monitor != nil {
		c.monitor.write(f, c.log)
	}
	c.pending = append(c.pending, f.Payload...)
	if len(c.pending) == 0 {
		return nil
	}
	err := c.send("incoming_audio", c.pending)
	c.pending = c.pending[:0]
	return err
}

// Emit polls the session for pending server messages with a short timeout,
// decodes translation_speech payloads into INT16 PCM, and returns the
// accumulated result (spec §4.10 step 3).
func (c *Connector) Emit(ctx context.Context) (*audio.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, nil
	}

	sampleRate := 16000
	for {
		c.conn.SetReadDeadline(time.Now().Add(pollTimeout))
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Event != "translation_speech" {
			continue
		}
		var ts translationSpeech
		if err := json.Unmarshal(msg.Data, &ts); err != nil {
			c.log.Warn("malformed translation_speech", "component", "translate", "err", err)
			continue
		}
		sampleRate = ts.SampleRate
		for _, v := range ts.Payload {
			c.accum = append(c.accum, int16LEBytes(int16(math.Round(v*int16Max)))...)
		}
	}

	if len(c.accum) == 0 {
		return nil, nil
	}
	f := &audio.Frame{Format: audio.Int16, SampleRateHz: sampleRate, Channels: 1, Payload: c.accum}
	c.accum = nil
	return f, nil
}

func int16LEBytes(v int16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

// opusMonitorFrameSamples is one 20ms Opus frame at the connector's fixed
// 16kHz mono stream rate.
const opusMonitorFrameSamples = 320

// opusMonitor Opus-encodes a copy of the connector's incoming stream to a
// local file, reusing the teacher's own encoder settings (VoIP application,
// one channel) for a compact recording tap a reviewer can play back
// separately from the remote translation session.
type opusMonitor struct {
	enc *opus.Encoder
	out *os.File
	pcm []int16
}

func newOpusMonitor(path string) (*opusMonitor, error) {
	enc, err := opus.NewEncoder(16000, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("translate: opus encoder: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("translate: open monitor file: %w", err)
	}
	return &opusMonitor{enc: enc, out: f}, nil
}

// write appends f's samples to the pending PCM buffer and flushes every full
// 20ms frame as a length-prefixed Opus packet.
func (m *opusMonitor) write(f audio.Frame, log *slog.Logger) {
	pcm := f.ToPCM16LE(log)
	m.pcm = append(m.pcm, pcm.Int16Samples()...)

	data := make([]byte, 4000)
	for len(m.pcm) >= opusMonitorFrameSamples {
		n, err := m.enc.Encode(m.pcm[:opusMonitorFrameSamples], data)
		m.pcm = m.pcm[opusMonitorFrameSamples:]
		if err != nil {
			continue
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(n))
		m.out.Write(lenBuf[:])
		m.out.Write(data[:n])
	}
}

func (m *opusMonitor) Close() error {
	if m == nil || m.out == nil {
		return nil
	}
	return m.out.Close()
}
