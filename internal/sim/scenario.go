package sim

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so scenario files can say "30s" or "2m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

type NodeCfg struct {
	Count     int      `yaml:"count" json:"count"`
	Gateways  int      `yaml:"gateways" json:"gateways"`
	JoinDelay Duration `yaml:"join_delay" json:"join_delay"`
}

type TrafficCfg struct {
	MsgPerNodePerMin float64 `yaml:"msg_per_node_per_min" json:"msg_per_node_per_min"`
	// Destination every DATA packet is addressed to. Zero means a random
	// node in the mesh instead of a fixed upstream id.
	DestinationID uint32 `yaml:"destination_id" json:"destination_id"`
}

type LogCfg struct {
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
}

type Scenario struct {
	Duration     Duration   `yaml:"duration" json:"duration"`
	Seed         int64      `yaml:"seed" json:"seed"`
	AreaM2       float64    `yaml:"area_m2" json:"area_m2"`
	Nodes        NodeCfg    `yaml:"nodes" json:"nodes"`
	StartupDelay Duration   `yaml:"startup_delay" json:"startup_delay"`
	DrainDelay   Duration   `yaml:"drain_delay" json:"drain_delay"`
	Traffic      TrafficCfg `yaml:"traffic" json:"traffic"`
	Logging      LogCfg     `yaml:"logging" json:"logging"`
}

func LoadScenario(path string) (*Scenario, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := &Scenario{}
	if yaml.Unmarshal(f, sc) == nil {
		return sc, nil
	}
	// fallback JSON
	if err := json.Unmarshal(f, sc); err != nil {
		return nil, err
	}
	return sc, nil
}
