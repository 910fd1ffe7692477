package health

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type staticChecker struct {
	result CheckResult
}

func (s staticChecker) Check(context.Context) CheckResult {
	return s.result
}

func TestProbeRunnerReady(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		staticChecker{result: CheckResult{Name: "db", Healthy: true}},
		staticChecker{result: CheckResult{Name: "redis", Healthy: true}},
	)
	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatal("expected ready")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestProbeRunnerUnreadyWhenAnyCheckFails(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		staticChecker{result: CheckResult{Name: "db", Healthy: true}},
		staticChecker{result: CheckResult{Name: "redis", Healthy: false, Error: "down"}},
	)
	ready, _ := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready")
	}
}

func TestProbeRunnerStartupGrace(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 2*time.Second,
		staticChecker{result: CheckResult{Name: "db", Healthy: true}},
	)
	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready during grace period")
	}
	if len(results) != 1 || results[0].Name != "startup_grace" {
		t.Fatalf("unexpected grace results: %+v", results)
	}
}

func TestRedisChecker(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewRedisChecker(client)
	if res := checker.Check(context.Background()); !res.Healthy {
		t.Fatalf("expected healthy, got %+v", res)
	}

	srv.Close()
	if res := checker.Check(context.Background()); res.Healthy {
		t.Fatal("expected unhealthy after server stop")
	}
}
