package sim

import (
	"log"
	"math"
	"math/rand"
	"time"

	eb "thor-mesh/internal/eventBus"
	"thor-mesh/internal/metrics"
	"thor-mesh/internal/network"
	"thor-mesh/internal/node"
)

type Runner struct {
	sc   *Scenario
	bus  *eb.EventBus
	net  *network.NetworkImpl
	coll *metrics.Collector
	rng  *rand.Rand

	quit chan struct{}
}

func NewRunner(sc *Scenario, bus *eb.EventBus, net *network.NetworkImpl, coll *metrics.Collector) *Runner {
	return &Runner{
		sc:   sc,
		bus:  bus,
		net:  net,
		coll: coll,
		rng:  rand.New(rand.NewSource(sc.Seed)),
		quit: make(chan struct{}),
	}
}

// Stop asks a running simulation to wind down early.
func (r *Runner) Stop() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
}

func (r *Runner) Run() error {
	go r.net.Run()

	// metrics wire-up
	sub := r.bus.Subscribe()
	go r.coll.Consume(sub)

	r.placeNodes()

	if d := r.sc.StartupDelay.Std(); d > 0 {
		log.Printf("[sim] startup delay, waiting %s before traffic", d)
		time.Sleep(d)
	}

	// Poisson-ish traffic: one ticker for the whole mesh at the
	// aggregate rate, a random source each tick.
	perSec := r.sc.Traffic.MsgPerNodePerMin / 60.0
	if perSec <= 0 {
		perSec = 0.1
	}
	interval := time.Duration(float64(time.Second) / (perSec * float64(r.sc.Nodes.Count)))
	tick := time.NewTicker(interval)
	defer tick.Stop()

	done := time.After(r.sc.Duration.Std())

	for {
		select {
		case <-done:
			r.shutdown(tick)
			return nil
		case <-r.quit:
			r.shutdown(tick)
			return nil
		case <-tick.C:
			r.emitRandomTraffic()
		}
	}
}

func (r *Runner) shutdown(tick *time.Ticker) {
	tick.Stop()
	if d := r.sc.DrainDelay.Std(); d > 0 {
		// Leave the mesh running so queued packets get a chance to find
		// a mule before the lights go out.
		log.Printf("[sim] draining for %s", d)
		time.Sleep(d)
	}
	r.net.LeaveAll()
}

// placeNodes lays the mesh out on a grid over the scenario area. The
// first Gateways nodes get direct internet.
func (r *Runner) placeNodes() {
	rows := int(math.Ceil(math.Sqrt(float64(r.sc.Nodes.Count))))
	cols := rows
	side := math.Sqrt(r.sc.AreaM2)

	idx := 0
	for row := 0; row < rows && idx < r.sc.Nodes.Count; row++ {
		for col := 0; col < cols && idx < r.sc.Nodes.Count; col++ {
			lat := float64(row) * side / math.Max(float64(rows-1), 1)
			lng := float64(col) * side / math.Max(float64(cols-1), 1)
			n := node.NewNodeWithID(uint32(idx+1), lat, lng, r.bus)

			if idx < r.sc.Nodes.Gateways {
				if g, ok := n.(interface{ SetInternet(bool) }); ok {
					g.SetInternet(true)
				}
			}

			r.net.Join(n)
			idx++
			if d := r.sc.Nodes.JoinDelay.Std(); d > 0 {
				time.Sleep(d)
			}
		}
	}
	log.Printf("[sim] placed %d nodes (%d gateways) on a %dx%d grid", idx, r.sc.Nodes.Gateways, rows, cols)
}

func (r *Runner) emitRandomTraffic() {
	nodes := r.net.Nodes()
	if len(nodes) < 2 {
		return
	}

	from := nodes[r.rng.Intn(len(nodes))]

	dest := r.sc.Traffic.DestinationID
	if dest == 0 {
		to := nodes[r.rng.Intn(len(nodes))]
		if to.GetID() == from.GetID() {
			return
		}
		dest = to.GetID()
	}

	from.SendData(r.net, dest, []byte("sim traffic"))
}
