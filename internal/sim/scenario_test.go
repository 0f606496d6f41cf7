package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadScenarioYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	data := `
duration: 2m
seed: 7
area_m2: 1000000
nodes:
  count: 9
  gateways: 1
  join_delay: 50ms
startup_delay: 1s
drain_delay: 5s
traffic:
  msg_per_node_per_min: 6.0
  destination_id: 9999
logging:
  metrics_file: out.json
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Duration.Std() != 2*time.Minute {
		t.Fatalf("duration = %s, want 2m", sc.Duration.Std())
	}
	if sc.Nodes.Count != 9 || sc.Nodes.Gateways != 1 {
		t.Fatalf("nodes = %+v", sc.Nodes)
	}
	if sc.Nodes.JoinDelay.Std() != 50*time.Millisecond {
		t.Fatalf("join_delay = %s, want 50ms", sc.Nodes.JoinDelay.Std())
	}
	if sc.Traffic.DestinationID != 9999 {
		t.Fatalf("destination_id = %d, want 9999", sc.Traffic.DestinationID)
	}
	if sc.Logging.MetricsFile != "out.json" {
		t.Fatalf("metrics_file = %q", sc.Logging.MetricsFile)
	}
}

func TestLoadScenarioJSONFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.json")
	data := `{"duration":"30s","seed":1,"area_m2":100,"nodes":{"count":2,"gateways":1,"join_delay":"0s"},"startup_delay":"0s","drain_delay":"0s","traffic":{"msg_per_node_per_min":1},"logging":{"metrics_file":"m.json"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Duration.Std() != 30*time.Second {
		t.Fatalf("duration = %s, want 30s", sc.Duration.Std())
	}
}
