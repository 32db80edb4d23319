package provider

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

// LocalConfig describes the recognition worker process.
type LocalConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Quality int      `mapstructure:"quality"`
	Env     []string `mapstructure:"env"`
}

// maxFrameBytes bounds a single worker response.
const maxFrameBytes = 64 << 20

type workerRequest struct {
	Op       string   `json:"op"`
	Image    string   `json:"image"`
	Language string   `json:"lang,omitempty"`
	Boxes    [][4]int `json:"boxes,omitempty"`
}

type workerResponse struct {
	HasText     bool                 `json:"has_text"`
	Boxes       [][4]int             `json:"boxes"`
	Annotations []regions.Annotation `json:"annotations"`
	Error       string               `json:"error"`
}

// Local talks to a long-lived worker process. Requests go to the worker's
// stdin and responses come back on file descriptor 3, each framed as a
// big-endian uint32 length followed by a JSON body. The worker is started
// lazily and restarted after a protocol failure.
type Local struct {
	cfg LocalConfig

	mu   sync.Mutex
	cmd  *exec.Cmd
	in   io.WriteCloser
	out  io.ReadCloser
	done bool
}

// NewLocal validates cfg; the process starts on first use.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.Command == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "local provider: command is required")
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 90
	}
	return &Local{cfg: cfg}, nil
}

func (l *Local) startLocked() error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create pipe: %w", err)
	}
	cmd := exec.Command(l.cfg.Command, l.cfg.Args...)
	cmd.Env = append(os.Environ(), l.cfg.Env...)
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return fmt.Errorf("start %s: %w", l.cfg.Command, err)
	}
	w.Close()

	l.cmd, l.in, l.out = cmd, stdin, r
	slog.Info("recognition worker started", "command", l.cfg.Command, "pid", cmd.Process.Pid)
	return nil
}

func (l *Local) stopLocked() {
	if l.cmd == nil {
		return
	}
	l.in.Close()
	l.out.Close()
	if err := l.cmd.Wait(); err != nil {
		slog.Debug("recognition worker exited", "error", err)
	}
	l.cmd, l.in, l.out = nil, nil, nil
}

func (l *Local) communicate(ctx context.Context, req workerRequest) (workerResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return workerResponse{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return workerResponse{}, apperrors.New(apperrors.CodeUnavailable, "local provider closed")
	}
	if err := ctx.Err(); err != nil {
		return workerResponse{}, err
	}
	if l.cmd == nil {
		if err := l.startLocked(); err != nil {
			return workerResponse{}, apperrors.Wrap(err, apperrors.CodeUnavailable, "recognition worker")
		}
	}

	raw, err := l.roundTrip(body)
	if err != nil {
		l.stopLocked()
		return workerResponse{}, apperrors.Wrap(err, apperrors.CodeUnavailable, "recognition worker")
	}

	var resp workerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return workerResponse{}, apperrors.Wrap(err, apperrors.CodeProviderFailure, "decode worker response")
	}
	if resp.Error != "" {
		return workerResponse{}, apperrors.New(apperrors.CodeProviderFailure, resp.Error)
	}
	return resp, nil
}

func (l *Local) roundTrip(body []byte) ([]byte, error) {
	if err := binary.Write(l.in, binary.BigEndian, uint32(len(body))); err != nil {
		return nil, err
	}
	if _, err := l.in.Write(body); err != nil {
		return nil, err
	}

	var header [4]byte
	if _, err := io.ReadFull(l.out, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("response of %d bytes exceeds limit", n)
	}
	resp := make([]byte, n)
	_, err := io.ReadFull(l.out, resp)
	return resp, err
}

func (l *Local) encode(img image.Image) (string, error) {
	data, err := imageutil.EncodeJPEG(img, l.cfg.Quality)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeProviderFailure, "encode frame")
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (l *Local) HasText(ctx context.Context, img image.Image) (bool, error) {
	enc, err := l.encode(img)
	if err != nil {
		return false, err
	}
	resp, err := l.communicate(ctx, workerRequest{Op: "has_text", Image: enc})
	return resp.HasText, err
}

func (l *Local) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	enc, err := l.encode(img)
	if err != nil {
		return nil, err
	}
	resp, err := l.communicate(ctx, workerRequest{Op: "detect", Image: enc})
	if err != nil {
		return nil, err
	}
	out := make([]image.Rectangle, 0, len(resp.Boxes))
	for _, b := range resp.Boxes {
		out = append(out, image.Rect(b[0], b[1], b[2], b[3]))
	}
	return out, nil
}

func (l *Local) Recognize(ctx context.Context, img image.Image, hints Hints) ([]regions.Annotation, error) {
	enc, err := l.encode(img)
	if err != nil {
		return nil, err
	}
	resp, err := l.communicate(ctx, workerRequest{
		Op:       "recognize",
		Image:    enc,
		Language: hints.Language,
		Boxes:    boxCoords(hints.Boxes),
	})
	return resp.Annotations, err
}

// Close stops the worker. Later calls fail with Unavailable.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = true
	l.stopLocked()
	return nil
}
