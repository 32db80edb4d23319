package provider

import (
	"context"
	"fmt"
	"image"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
)

type structHandler func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unary(h structHandler) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		return h(ctx, in)
	}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func startFakeInference(t *testing.T) *Remote {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()

	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "overlay.v1.Vision",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "HasText", Handler: unary(func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return mustStruct(t, map[string]any{"has_text": in.GetFields()["image"].GetStringValue() != ""}), nil
			})},
			{MethodName: "Detect", Handler: unary(func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return mustStruct(t, map[string]any{"boxes": []any{[]any{1, 2, 30, 40}}}), nil
			})},
			{MethodName: "Recognize", Handler: unary(func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				if in.GetFields()["lang"].GetStringValue() == "xx" {
					return nil, apperrors.New(apperrors.CodeRateLimited, "slow down").GRPCStatus().Err()
				}
				text := "Crew:"
				if boxes := in.GetFields()["boxes"].GetListValue().GetValues(); len(boxes) > 0 {
					c := boxes[0].GetListValue().GetValues()
					text = fmt.Sprintf("Crew: in %v,%v", c[2].GetNumberValue(), c[3].GetNumberValue())
				}
				return mustStruct(t, map[string]any{"annotations": []any{
					map[string]any{"text": text, "confidence": 0.9, "box": []any{[]any{0, 0}, []any{40, 10}}},
				}}), nil
			})},
		},
	}, struct{}{})
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "overlay.v1.Translation",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Translate", Handler: unary(func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return mustStruct(t, map[string]any{"text": "[" + in.GetFields()["lang"].GetStringValue() + "] " + in.GetFields()["text"].GetStringValue()}), nil
			})},
		},
	}, struct{}{})
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	r, err := NewRemote(RemoteConfig{Addr: "passthrough:///bufnet"},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRemoteProvider(t *testing.T) {
	r := startFakeInference(t)
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))

	if !r.Healthy(ctx) {
		t.Error("fake server should be healthy")
	}

	ok, err := r.HasText(ctx, img)
	if err != nil || !ok {
		t.Fatalf("HasText = %v, %v", ok, err)
	}

	boxes, err := r.Detect(ctx, img)
	if err != nil || len(boxes) != 1 || boxes[0] != image.Rect(1, 2, 30, 40) {
		t.Fatalf("Detect = %v, %v", boxes, err)
	}

	anns, err := r.Recognize(ctx, img, Hints{Language: "en"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(anns) != 1 || anns[0].Text != "Crew:" || len(anns[0].Box) != 2 || anns[0].Box[1].X != 40 {
		t.Errorf("annotations = %+v", anns)
	}
	anns, err = r.Recognize(ctx, img, Hints{Language: "en", Boxes: boxes})
	if err != nil || len(anns) != 1 || anns[0].Text != "Crew: in 30,40" {
		t.Errorf("Recognize with boxes = %+v, %v", anns, err)
	}

	got, err := r.Translate(ctx, "hola", "en")
	if err != nil || got != "[en] hola" {
		t.Errorf("Translate = %q, %v", got, err)
	}
}

func TestRemoteErrorMapping(t *testing.T) {
	r := startFakeInference(t)
	_, err := r.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), Hints{Language: "xx"})
	if !apperrors.IsCode(err, apperrors.CodeRateLimited) {
		t.Fatalf("err = %v, want RATE_LIMITED from error details", err)
	}
	if !apperrors.IsRetryable(err) {
		t.Error("rate limited errors should be retryable")
	}
}
