package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

// Remote service method names. Messages are google.protobuf.Struct.
const (
	MethodHasText   = "/overlay.v1.Vision/HasText"
	MethodDetect    = "/overlay.v1.Vision/Detect"
	MethodRecognize = "/overlay.v1.Vision/Recognize"
	MethodTranslate = "/overlay.v1.Translation/Translate"
)

// Client defaults.
const (
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second
	HealthCheckTimeout      = 2 * time.Second
)

// RemoteConfig configures the gRPC inference client.
type RemoteConfig struct {
	Addr    string `mapstructure:"addr"`
	Quality int    `mapstructure:"quality"`
}

// Remote is a TextProvider and Translator backed by a gRPC inference service.
type Remote struct {
	conn    *grpc.ClientConn
	quality int
}

// NewRemote creates the client. The connection is established lazily.
func NewRemote(cfg RemoteConfig, opts ...grpc.DialOption) (*Remote, error) {
	if cfg.Addr == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "remote provider: addr is required")
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 90
	}
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                DefaultKeepaliveTime,
			Timeout:             DefaultKeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	}
	conn, err := grpc.NewClient(cfg.Addr, append(base, opts...)...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "remote provider")
	}
	return &Remote{conn: conn, quality: cfg.Quality}, nil
}

func (r *Remote) Close() error { return r.conn.Close() }

// Healthy asks the standard health service whether the server is serving.
func (r *Remote) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	resp, err := grpc_health_v1.NewHealthClient(r.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	return err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING
}

func (r *Remote) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "build request")
	}
	out := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, apperrors.FromGRPCError(err)
	}
	return out, nil
}

func (r *Remote) imageRequest(img image.Image) (map[string]any, error) {
	data, err := imageutil.EncodeJPEG(img, r.quality)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderFailure, "encode frame")
	}
	return map[string]any{"image": base64.StdEncoding.EncodeToString(data), "format": "jpeg"}, nil
}

func (r *Remote) HasText(ctx context.Context, img image.Image) (bool, error) {
	req, err := r.imageRequest(img)
	if err != nil {
		return false, err
	}
	resp, err := r.invoke(ctx, MethodHasText, req)
	if err != nil {
		return false, err
	}
	return resp.GetFields()["has_text"].GetBoolValue(), nil
}

func (r *Remote) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	req, err := r.imageRequest(img)
	if err != nil {
		return nil, err
	}
	resp, err := r.invoke(ctx, MethodDetect, req)
	if err != nil {
		return nil, err
	}
	var out []image.Rectangle
	for _, v := range resp.GetFields()["boxes"].GetListValue().GetValues() {
		c := v.GetListValue().GetValues()
		if len(c) != 4 {
			return nil, apperrors.Newf(apperrors.CodeProviderFailure, "box has %d coordinates", len(c))
		}
		out = append(out, image.Rect(int(c[0].GetNumberValue()), int(c[1].GetNumberValue()),
			int(c[2].GetNumberValue()), int(c[3].GetNumberValue())))
	}
	return out, nil
}

func (r *Remote) Recognize(ctx context.Context, img image.Image, hints Hints) ([]regions.Annotation, error) {
	req, err := r.imageRequest(img)
	if err != nil {
		return nil, err
	}
	if hints.Language != "" {
		req["lang"] = hints.Language
	}
	if coords := boxCoords(hints.Boxes); len(coords) > 0 {
		boxes := make([]any, 0, len(coords))
		for _, c := range coords {
			boxes = append(boxes, []any{c[0], c[1], c[2], c[3]})
		}
		req["boxes"] = boxes
	}
	resp, err := r.invoke(ctx, MethodRecognize, req)
	if err != nil {
		return nil, err
	}
	return decodeAnnotations(resp.GetFields()["annotations"])
}

// decodeAnnotations reads a list of {"box":[[x,y],...],"text","confidence"}.
func decodeAnnotations(v *structpb.Value) ([]regions.Annotation, error) {
	var out []regions.Annotation
	for _, item := range v.GetListValue().GetValues() {
		f := item.GetStructValue().GetFields()
		a := regions.Annotation{
			Text:       f["text"].GetStringValue(),
			Confidence: f["confidence"].GetNumberValue(),
		}
		for _, p := range f["box"].GetListValue().GetValues() {
			xy := p.GetListValue().GetValues()
			if len(xy) != 2 {
				raw, _ := protojson.Marshal(p)
				return nil, apperrors.New(apperrors.CodeProviderFailure, fmt.Sprintf("malformed box point %s", raw))
			}
			a.Box = append(a.Box, regions.Point{X: xy[0].GetNumberValue(), Y: xy[1].GetNumberValue()})
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Remote) Translate(ctx context.Context, text, lang string) (string, error) {
	resp, err := r.invoke(ctx, MethodTranslate, map[string]any{"text": text, "lang": lang})
	if err != nil {
		return "", err
	}
	return resp.GetFields()["text"].GetStringValue(), nil
}
