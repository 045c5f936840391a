package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"pixel-catalog/internal/logging"

	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// FFmpegConfig locates the ffprobe and ffmpeg binaries.
type FFmpegConfig struct {
	FFprobePath string
	FFmpegPath  string
	// FrameCodec is the image codec ffmpeg writes frames with: "png" or "bmp".
	// bmp skips compression and is faster for large frames.
	FrameCodec string
}

// DefaultFFmpegConfig resolves both binaries from PATH.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFprobePath: "ffprobe",
		FFmpegPath:  "ffmpeg",
		FrameCodec:  "png",
	}
}

// FFmpeg implements Decoder by running ffprobe once per session for stream
// facts and ffmpeg once per frame request.
type FFmpeg struct {
	cfg FFmpegConfig
}

// NewFFmpeg creates an ffmpeg-backed decoder.
func NewFFmpeg(cfg FFmpegConfig) *FFmpeg {
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FrameCodec != "bmp" {
		cfg.FrameCodec = "png"
	}
	return &FFmpeg{cfg: cfg}
}

// Available reports whether both binaries can be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.cfg.FFprobePath); err != nil {
		return fmt.Errorf("ffprobe not found: %w", err)
	}
	if _, err := exec.LookPath(f.cfg.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     *int   `json:"width"`
	Height    *int   `json:"height"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// probeFacts is the subset of ffprobe output a session exposes.
type probeFacts struct {
	codec      string
	width      *int
	height     *int
	durationMs *int64
}

// parseProbe extracts facts from ffprobe JSON. The first video stream wins;
// a file with no video stream is ErrUnsupported.
func parseProbe(data []byte) (probeFacts, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return probeFacts{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var facts probeFacts
	found := false
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		facts.codec = s.CodecName
		facts.width = s.Width
		facts.height = s.Height
		found = true
		break
	}
	if !found {
		return probeFacts{}, ErrUnsupported
	}

	if out.Format.Duration != "" {
		if secs, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && secs >= 0 {
			ms := int64(secs * 1000)
			facts.durationMs = &ms
		}
	}

	return facts, nil
}

// Open probes path and returns a session over the result. The session's
// context bounds every subprocess it starts; Close cancels it.
func (f *FFmpeg) Open(ctx context.Context, path string) (Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	cmd := exec.CommandContext(ctx, f.cfg.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	facts, err := parseProbe(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	return &ffmpegSession{
		cfg:    f.cfg,
		path:   path,
		facts:  facts,
		ctx:    sessCtx,
		cancel: cancel,
	}, nil
}

type ffmpegSession struct {
	cfg   FFmpegConfig
	path  string
	facts probeFacts

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *ffmpegSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *ffmpegSession) Codec() (string, bool) {
	if s.isClosed() || s.facts.codec == "" {
		return "", false
	}
	return s.facts.codec, true
}

func (s *ffmpegSession) Width() (int, bool) {
	if s.isClosed() || s.facts.width == nil {
		return 0, false
	}
	return *s.facts.width, true
}

func (s *ffmpegSession) Height() (int, bool) {
	if s.isClosed() || s.facts.height == nil {
		return 0, false
	}
	return *s.facts.height, true
}

func (s *ffmpegSession) DurationMs() (int64, bool) {
	if s.isClosed() || s.facts.durationMs == nil {
		return 0, false
	}
	return *s.facts.durationMs, true
}

// frameArgs builds the ffmpeg argument list. Input seeking (-ss before -i)
// lands on the nearest keyframe; output seeking decodes up to the exact time.
func frameArgs(path string, at time.Duration, mode SeekMode, codec string) []string {
	ts := fmt.Sprintf("%.3f", at.Seconds())

	var args []string
	if mode == SeekExact {
		args = []string{"-i", path, "-ss", ts}
	} else {
		args = []string{"-ss", ts, "-i", path}
	}
	return append(args,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", codec,
		"-",
	)
}

func (s *ffmpegSession) FrameAt(ctx context.Context, at time.Duration, mode SeekMode) (image.Image, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	out, err := s.runFrame(runCtx, frameArgs(s.path, at, mode, s.cfg.FrameCodec))
	if err == nil && len(out) == 0 && at > 0 {
		// Clips shorter than the seek target produce nothing; take the first frame.
		logging.Debug("No frame at %v for %s, falling back to first frame", at, s.path)
		out, err = s.runFrame(runCtx, frameArgs(s.path, 0, SeekClosest, s.cfg.FrameCodec))
	}
	if err != nil {
		if s.isClosed() {
			return nil, ErrSessionClosed
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrame, s.path)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

func (s *ffmpegSession) runFrame(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
		}
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}
	return stdout.Bytes(), nil
}

// Close cancels any frame extraction still running for this session.
func (s *ffmpegSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return nil
}
