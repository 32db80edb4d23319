package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestNewContextIDs(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 || len(tc.SpanID) != 16 {
		t.Errorf("ids = %q / %q", tc.TraceID, tc.SpanID)
	}
}

func TestStartSpanChainsParent(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "cycle")
	_, child := StartSpan(ctx, "recognize")

	if child.Ctx.TraceID != root.Ctx.TraceID {
		t.Error("child should share trace id")
	}
	if child.Ctx.ParentSpanID != root.Ctx.SpanID {
		t.Error("child parent should be root span")
	}
	if child.Duration() != 0 {
		t.Error("open span should have zero duration")
	}
	child.End()
	if child.EndTime.IsZero() {
		t.Error("End should set EndTime")
	}
}

func TestSessionID(t *testing.T) {
	ctx := WithSession(context.Background(), "abc")
	if got := SessionID(ctx); got != "abc" {
		t.Errorf("SessionID = %q", got)
	}
	if got := SessionID(context.Background()); got != "" {
		t.Errorf("SessionID on empty ctx = %q", got)
	}
}

func TestMiddlewareKeepsIncomingTrace(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(TraceIDKey, "0123456789abcdef0123456789abcdef")
	req.Header.Set(SpanIDKey, "0123456789abcdef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen.TraceID != "0123456789abcdef0123456789abcdef" {
		t.Errorf("TraceID = %q", seen.TraceID)
	}
	if seen.ParentSpanID != "0123456789abcdef" {
		t.Errorf("ParentSpanID = %q", seen.ParentSpanID)
	}
	if rec.Header().Get(TraceIDKey) != seen.TraceID {
		t.Error("response should echo trace id")
	}
}

func TestInjectMetadata(t *testing.T) {
	ctx := WithSession(WithContext(context.Background(), New()), "s1")
	md, ok := metadata.FromOutgoingContext(injectMetadata(ctx))
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if len(md.Get(TraceIDKey)) != 1 || md.Get(SessionIDKey)[0] != "s1" {
		t.Errorf("metadata = %v", md)
	}
}
