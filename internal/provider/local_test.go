package provider

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"testing"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

const helperEnv = "OVERLAY_WORKER_HELPER=1"

// TestHelperWorker is not a real test: it runs as the worker process for the
// local provider tests.
func TestHelperWorker(t *testing.T) {
	if os.Getenv("OVERLAY_WORKER_HELPER") != "1" {
		t.Skip("helper process")
	}
	out := os.NewFile(3, "data")
	for {
		var n uint32
		if err := binary.Read(os.Stdin, binary.BigEndian, &n); err != nil {
			os.Exit(0)
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(os.Stdin, body); err != nil {
			os.Exit(1)
		}
		var req workerRequest
		json.Unmarshal(body, &req)

		var resp workerResponse
		switch req.Op {
		case "has_text":
			resp.HasText = req.Image != ""
		case "detect":
			resp.Boxes = [][4]int{{0, 0, 10, 10}}
		case "recognize":
			if req.Language == "crash" {
				os.Exit(2)
			}
			if req.Language == "fail" {
				resp.Error = "model not loaded"
				break
			}
			text := "lang=" + req.Language
			if len(req.Boxes) > 0 {
				text += fmt.Sprintf(" box=%v", req.Boxes[0])
			}
			resp.Annotations = []regions.Annotation{regions.RectAnnotation(0, 0, 10, 10, text)}
		}
		data, _ := json.Marshal(resp)
		binary.Write(out, binary.BigEndian, uint32(len(data)))
		out.Write(data)
	}
}

func newHelperLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(LocalConfig{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperWorker"},
		Env:     []string{helperEnv},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLocalProvider(t *testing.T) {
	l := newHelperLocal(t)
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))

	ok, err := l.HasText(ctx, img)
	if err != nil || !ok {
		t.Fatalf("HasText = %v, %v", ok, err)
	}
	boxes, err := l.Detect(ctx, img)
	if err != nil || len(boxes) != 1 || boxes[0] != image.Rect(0, 0, 10, 10) {
		t.Fatalf("Detect = %v, %v", boxes, err)
	}
	anns, err := l.Recognize(ctx, img, Hints{Language: "en"})
	if err != nil || len(anns) != 1 || anns[0].Text != "lang=en" {
		t.Fatalf("Recognize = %+v, %v", anns, err)
	}
	anns, err = l.Recognize(ctx, img, Hints{Language: "en", Boxes: boxes})
	if err != nil || len(anns) != 1 || anns[0].Text != "lang=en box=[0 0 10 10]" {
		t.Fatalf("Recognize with boxes = %+v, %v", anns, err)
	}
}

func TestLocalProviderErrors(t *testing.T) {
	l := newHelperLocal(t)
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))

	_, err := l.Recognize(ctx, img, Hints{Language: "fail"})
	if !apperrors.IsCode(err, apperrors.CodeProviderFailure) {
		t.Errorf("worker error = %v, want PROVIDER_FAILURE", err)
	}

	_, err = l.Recognize(ctx, img, Hints{Language: "crash"})
	if !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("crash = %v, want UNAVAILABLE", err)
	}

	// The worker is restarted on the next call.
	anns, err := l.Recognize(ctx, img, Hints{Language: "en"})
	if err != nil || len(anns) != 1 {
		t.Errorf("after restart Recognize = %+v, %v", anns, err)
	}

	l.Close()
	if _, err := l.HasText(ctx, img); !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("closed provider err = %v, want UNAVAILABLE", err)
	}
}
