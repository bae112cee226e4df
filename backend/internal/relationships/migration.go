package relationships

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"squadgraph/backend/internal/graph"
	"squadgraph/backend/pkg/errors"
)

// ServerStatus classifies a server by net player migration
type ServerStatus string

const (
	StatusGrowing   ServerStatus = "growing"
	StatusDeclining ServerStatus = "declining"
	StatusStable    ServerStatus = "stable"
	StatusDead      ServerStatus = "dead"
)

// migrationThreshold is the net-to-volume ratio separating stable servers
const migrationThreshold = 0.20

// Transition counts players moving from one server to another
type Transition struct {
	FromServer string `json:"from_server"`
	ToServer   string `json:"to_server"`
	Players    int    `json:"players"`
}

// ServerFlow is a server's migration balance over a range
type ServerFlow struct {
	ServerID     string       `json:"server_id"`
	Inflow       int          `json:"inflow"`
	Outflow      int          `json:"outflow"`
	NetMigration int          `json:"net_migration"`
	Ratio        float64      `json:"ratio"`
	Status       ServerStatus `json:"status"`
}

// MigrationFlow is the transition matrix and per-server balance for a range
type MigrationFlow struct {
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	Transitions []Transition `json:"transitions"`
	Servers     []ServerFlow `json:"servers"`
}

// MigrationFlow derives server-to-server transitions from the order in which
// each player last played their servers inside [from, to)
func (s *Service) MigrationFlow(ctx context.Context, from, to time.Time) (*MigrationFlow, error) {
	if !from.Before(to) {
		return nil, errors.NewInvalidArgument("range", "from must be before to")
	}

	visits, err := s.graph.PlayerServerVisits(ctx, from, to)
	if err != nil {
		return nil, absent(err)
	}

	flow := buildFlow(from, to, visits)
	s.logger.Debug("Migration flow computed",
		zap.Int("visits", len(visits)),
		zap.Int("transitions", len(flow.Transitions)),
		zap.Int("servers", len(flow.Servers)),
	)
	return flow, nil
}

// ServerLifecycle returns one server's slice of the migration flow. A server
// with no movement is Stable.
func (s *Service) ServerLifecycle(ctx context.Context, serverID string, from, to time.Time) (*ServerFlow, error) {
	flow, err := s.MigrationFlow(ctx, from, to)
	if err != nil || flow == nil {
		return nil, err
	}
	for _, sf := range flow.Servers {
		if sf.ServerID == serverID {
			return &sf, nil
		}
	}
	return &ServerFlow{ServerID: serverID, Status: StatusStable}, nil
}

func buildFlow(from, to time.Time, visits []graph.PlayerServerVisit) *MigrationFlow {
	byPlayer := make(map[string][]graph.PlayerServerVisit)
	for _, v := range visits {
		byPlayer[v.Player] = append(byPlayer[v.Player], v)
	}

	type edge struct{ from, to string }
	transitions := make(map[edge]int)
	inflow := make(map[string]int)
	outflow := make(map[string]int)

	for _, vs := range byPlayer {
		sort.SliceStable(vs, func(i, j int) bool {
			if !vs[i].LastPlayed.Equal(vs[j].LastPlayed) {
				return vs[i].LastPlayed.Before(vs[j].LastPlayed)
			}
			return vs[i].ServerID < vs[j].ServerID
		})
		for i := 1; i < len(vs); i++ {
			prev, next := vs[i-1].ServerID, vs[i].ServerID
			if prev == next {
				continue
			}
			transitions[edge{prev, next}]++
			outflow[prev]++
			inflow[next]++
		}
	}

	flow := &MigrationFlow{From: from, To: to, Transitions: []Transition{}, Servers: []ServerFlow{}}
	for e, n := range transitions {
		flow.Transitions = append(flow.Transitions, Transition{FromServer: e.from, ToServer: e.to, Players: n})
	}
	sort.Slice(flow.Transitions, func(i, j int) bool {
		a, b := flow.Transitions[i], flow.Transitions[j]
		if a.Players != b.Players {
			return a.Players > b.Players
		}
		if a.FromServer != b.FromServer {
			return a.FromServer < b.FromServer
		}
		return a.ToServer < b.ToServer
	})

	servers := make(map[string]struct{})
	for id := range inflow {
		servers[id] = struct{}{}
	}
	for id := range outflow {
		servers[id] = struct{}{}
	}
	for id := range servers {
		flow.Servers = append(flow.Servers, classify(id, inflow[id], outflow[id]))
	}
	sort.Slice(flow.Servers, func(i, j int) bool { return flow.Servers[i].ServerID < flow.Servers[j].ServerID })

	return flow
}

// classify applies the ±20% net-migration thresholds. A server that only
// loses players is Dead.
func classify(serverID string, in, out int) ServerFlow {
	sf := ServerFlow{ServerID: serverID, Inflow: in, Outflow: out, NetMigration: in - out, Status: StatusStable}
	if in+out == 0 {
		return sf
	}
	sf.Ratio = float64(in-out) / float64(in+out)

	switch {
	case in == 0 && out > 0:
		sf.Status = StatusDead
	case sf.Ratio >= migrationThreshold:
		sf.Status = StatusGrowing
	case sf.Ratio <= -migrationThreshold:
		sf.Status = StatusDeclining
	}
	return sf
}
