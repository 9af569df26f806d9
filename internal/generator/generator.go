// Package generator produces synthetic traffic: a benign service mix and
// the three flood patterns the anomaly rules target.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"DDoSDefender/internal/model"
)

// Scenario names accepted by Generate.
const (
	ScenarioNormal    = "normal"
	ScenarioSYNFlood  = "syn_flood"
	ScenarioUDPFlood  = "udp_flood"
	ScenarioICMPFlood = "icmp_flood"
)

// Scenarios lists every scenario name.
var Scenarios = []string{ScenarioNormal, ScenarioSYNFlood, ScenarioUDPFlood, ScenarioICMPFlood}

// Intensity selects the packet rate and attacker pool of a flood.
type Intensity string

// Flood intensities.
const (
	Low    Intensity = "low"
	Medium Intensity = "medium"
	High   Intensity = "high"
)

type span struct{ min, max int }

var (
	floodRates   = map[Intensity]span{Low: {100, 1000}, Medium: {1000, 5000}, High: {5000, 10000}}
	attackerPool = map[Intensity]span{Low: {5, 10}, Medium: {10, 30}, High: {30, 50}}
)

// ParseIntensity accepts low, medium or high in any case.
func ParseIntensity(s string) (Intensity, error) {
	i := Intensity(strings.ToLower(s))
	if _, ok := floodRates[i]; !ok {
		return "", fmt.Errorf("unknown intensity %q", s)
	}
	return i, nil
}

// Generator draws records from a seeded source so runs are reproducible.
type Generator struct {
	rnd *rand.Rand
}

// New creates a generator with the given seed.
func New(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate emits duration worth of traffic for the scenario starting at start.
// rate is packets per second for the normal scenario; floods draw their rate
// from the intensity.
func (g *Generator) Generate(scenario string, start time.Time, duration time.Duration, rate int, intensity Intensity) ([]model.RawTrafficRecord, error) {
	switch scenario {
	case ScenarioNormal:
		return g.Normal(start, duration, rate), nil
	case ScenarioSYNFlood, ScenarioUDPFlood, ScenarioICMPFlood:
		return g.Flood(scenario, start, duration, intensity)
	}
	return nil, fmt.Errorf("unknown scenario %q", scenario)
}

type service struct {
	weight   float64
	protocol string
	port     uint16
	size     func(*rand.Rand) int
}

var services = []service{
	{0.40, model.ProtocolTCP, 80, lognormal(7.31, 0.5, 500, 5000)},
	{0.30, model.ProtocolTCP, 443, lognormal(7.82, 0.6, 800, 8000)},
	{0.15, model.ProtocolUDP, 53, normal(150, 50, 50, 300)},
	{0.10, model.ProtocolTCP, 21, exponential(0.00005, 1000, 50000)},
	{0.05, model.ProtocolUDP, 5060, normal(200, 100, 100, 1000)},
}

var establishedFlags = [][]string{
	{model.FlagACK},
	{model.FlagACK, model.FlagPSH},
	{model.FlagACK, model.FlagPSH},
	{model.FlagACK, model.FlagFIN},
	{model.FlagSYN, model.FlagACK},
	{model.FlagSYN},
}

// Normal emits a benign mix of web, DNS, FTP and VoIP traffic between
// internal clients and a handful of servers.
func (g *Generator) Normal(start time.Time, duration time.Duration, rate int) []model.RawTrafficRecord {
	if rate <= 0 {
		rate = 850
	}
	clients := g.addresses(200, true)
	servers := g.addresses(20, false)

	var out []model.RawTrafficRecord
	g.perSecond(start, duration, rate, func(ts time.Time) {
		svc := g.pickService()
		rec := model.RawTrafficRecord{
			Timestamp:          ts,
			SourceAddress:      clients[g.rnd.Intn(len(clients))],
			DestinationAddress: servers[g.rnd.Intn(len(servers))],
			Protocol:           svc.protocol,
			Size:               svc.size(g.rnd),
			SourcePort:         uint16(1024 + g.rnd.Intn(64511)),
			DestinationPort:    svc.port,
		}
		if svc.protocol == model.ProtocolTCP {
			rec.Flags = establishedFlags[g.rnd.Intn(len(establishedFlags))]
		}
		out = append(out, rec)
	})
	return out
}

// Flood emits one of the flood scenarios aimed at up to three internal targets.
func (g *Generator) Flood(scenario string, start time.Time, duration time.Duration, intensity Intensity) ([]model.RawTrafficRecord, error) {
	switch scenario {
	case ScenarioSYNFlood, ScenarioUDPFlood, ScenarioICMPFlood:
	default:
		return nil, fmt.Errorf("unknown flood %q", scenario)
	}
	rates, ok := floodRates[intensity]
	if !ok {
		return nil, fmt.Errorf("unknown intensity %q", intensity)
	}
	pool := attackerPool[intensity]
	attackers := g.addresses(g.between(pool), false)
	targets := g.addresses(1+g.rnd.Intn(3), true)

	var out []model.RawTrafficRecord
	g.perSecond(start, duration, g.between(rates), func(ts time.Time) {
		rec := model.RawTrafficRecord{
			Timestamp:          ts,
			SourceAddress:      attackers[g.rnd.Intn(len(attackers))],
			DestinationAddress: targets[g.rnd.Intn(len(targets))],
		}
		switch scenario {
		case ScenarioSYNFlood:
			rec.Protocol = model.ProtocolTCP
			rec.Flags = []string{model.FlagSYN}
			rec.Size = 60
			rec.SourcePort = uint16(1024 + g.rnd.Intn(64511))
			rec.DestinationPort = []uint16{80, 443, 22, 21, 25}[g.rnd.Intn(5)]
		case ScenarioUDPFlood:
			rec.Protocol = model.ProtocolUDP
			rec.Size = 50 + g.rnd.Intn(951)
			rec.SourcePort = uint16(1024 + g.rnd.Intn(64511))
			rec.DestinationPort = uint16(1 + g.rnd.Intn(65535))
		case ScenarioICMPFlood:
			rec.Protocol = model.ProtocolICMP
			rec.Size = 84
		}
		out = append(out, rec)
	})
	return out, nil
}

// perSecond calls emit about rate times for every second of duration,
// spreading the packets evenly inside each second. The rate jitters by 5%.
func (g *Generator) perSecond(start time.Time, duration time.Duration, rate int, emit func(time.Time)) {
	for sec := time.Duration(0); sec < duration; sec += time.Second {
		n := max(10, int(g.rnd.NormFloat64()*float64(rate)*0.05)+rate)
		step := time.Second / time.Duration(n)
		for i := 0; i < n; i++ {
			ts := start.Add(sec + time.Duration(i)*step)
			if ts.Sub(start) >= duration {
				return
			}
			emit(ts)
		}
	}
}

func (g *Generator) pickService() service {
	x := g.rnd.Float64()
	for _, s := range services {
		if x < s.weight {
			return s
		}
		x -= s.weight
	}
	return services[len(services)-1]
}

func (g *Generator) between(s span) int {
	return s.min + g.rnd.Intn(s.max-s.min+1)
}

// addresses draws n distinct IPv4 addresses, private or public.
func (g *Generator) addresses(n int, internal bool) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		var a string
		if internal {
			a = fmt.Sprintf("10.%d.%d.%d", g.rnd.Intn(256), g.rnd.Intn(256), 1+g.rnd.Intn(254))
		} else {
			a = fmt.Sprintf("%d.%d.%d.%d", publicOctet(g.rnd), g.rnd.Intn(256), g.rnd.Intn(256), 1+g.rnd.Intn(254))
		}
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

func publicOctet(r *rand.Rand) int {
	for {
		o := 1 + r.Intn(222)
		switch o {
		case 10, 127, 169, 172, 192, 198, 203:
			continue
		}
		return o
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func lognormal(mu, sigma float64, lo, hi int) func(*rand.Rand) int {
	return func(r *rand.Rand) int {
		return clamp(int(math.Exp(mu+sigma*r.NormFloat64())), lo, hi)
	}
}

func normal(mean, stddev float64, lo, hi int) func(*rand.Rand) int {
	return func(r *rand.Rand) int {
		return clamp(int(mean+stddev*r.NormFloat64()), lo, hi)
	}
}

func exponential(lambda float64, lo, hi int) func(*rand.Rand) int {
	return func(r *rand.Rand) int {
		return clamp(int(r.ExpFloat64()/lambda), lo, hi)
	}
}
