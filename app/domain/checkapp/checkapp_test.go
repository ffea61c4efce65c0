package checkapp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jcpaschoal/tenantauth/foundation/logger"
)

func TestReadinessWithoutDatabase(t *testing.T) {
	a := newApp("test", logger.New(io.Discard, logger.LevelInfo, "TEST", nil), nil)

	resp := a.readiness(context.Background(), httptest.NewRequest(http.MethodGet, "/v1/readiness", nil))

	info, ok := resp.(Info)
	if !ok || info.Status != "ok" {
		t.Errorf("readiness = %#v, want ok", resp)
	}
}

func TestLiveness(t *testing.T) {
	a := newApp("v1.2.3", logger.New(io.Discard, logger.LevelInfo, "TEST", nil), nil)

	resp := a.liveness(context.Background(), httptest.NewRequest(http.MethodGet, "/v1/liveness", nil))

	info, ok := resp.(Info)
	if !ok {
		t.Fatalf("liveness returned %T", resp)
	}

	if info.Status != "up" || info.Build != "v1.2.3" || info.GOMAXPROCS < 1 {
		t.Errorf("liveness = %+v", info)
	}
}
