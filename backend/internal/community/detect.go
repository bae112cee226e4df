package community

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"squadgraph/backend/internal/constants"
	"squadgraph/backend/internal/graph"
)

// communityNamespace scopes the name-based community ids
var communityNamespace = uuid.MustParse("0b6f3c1e-8d2a-5e47-9a61-2c4d7f0e9b35")

// CommunityID derives the stable id of the community led by leader
func CommunityID(leader string) string {
	return uuid.NewSHA1(communityNamespace, []byte(leader)).String()
}

// Groups maps a leader name to its members, leader included, sorted
type Groups map[string][]string

// LeaderDetect assigns every player with a strong neighbor to the smallest
// name among itself and its strong neighbors. This is a one-hop
// approximation: players linked only through a chain can land in different
// groups. Groups smaller than minSize are dropped.
func LeaderDetect(edges []graph.Relationship, minSize int) Groups {
	leader := make(map[string]string)
	consider := func(p, candidate string) {
		cur, ok := leader[p]
		if !ok {
			cur = p
		}
		if candidate < cur {
			cur = candidate
		}
		leader[p] = cur
	}
	for _, e := range edges {
		consider(e.PlayerA, e.PlayerB)
		consider(e.PlayerB, e.PlayerA)
	}

	groups := make(Groups)
	for p, l := range leader {
		groups[l] = append(groups[l], p)
	}
	return groups.prune(minSize)
}

// UnionFindDetect groups players into true connected components of the
// strong-edge subgraph, each led by its smallest name
func UnionFindDetect(edges []graph.Relationship, minSize int) Groups {
	parent := make(map[string]string)

	var find func(string) string
	find = func(x string) string {
		p, ok := parent[x]
		if !ok {
			parent[x] = x
			return x
		}
		if p == x {
			return x
		}
		root := find(p)
		parent[x] = root
		return root
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// smallest name stays root so it doubles as the leader
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	for _, e := range edges {
		union(e.PlayerA, e.PlayerB)
	}

	groups := make(Groups)
	for p := range parent {
		root := find(p)
		groups[root] = append(groups[root], p)
	}
	return groups.prune(minSize)
}

func (g Groups) prune(minSize int) Groups {
	for l, members := range g {
		if len(members) < minSize {
			delete(g, l)
			continue
		}
		sort.Strings(members)
	}
	return g
}

// Build turns member groups into communities using the strong edges and the
// members' per-server play counts
func Build(groups Groups, edges []graph.Relationship, plays []graph.PlaysOn) []graph.Community {
	memberOf := make(map[string]string)
	for l, members := range groups {
		for _, m := range members {
			memberOf[m] = l
		}
	}

	type stats struct {
		edges    int
		sessions int64
		first    time.Time
		last     time.Time
		degree   map[string]int
		servers  map[string]int64
	}
	acc := make(map[string]*stats, len(groups))
	for l := range groups {
		acc[l] = &stats{degree: make(map[string]int), servers: make(map[string]int64)}
	}

	for _, e := range edges {
		la, okA := memberOf[e.PlayerA]
		lb, okB := memberOf[e.PlayerB]
		if !okA || !okB || la != lb {
			continue
		}
		st := acc[la]
		st.edges++
		st.sessions += e.SessionCount
		st.degree[e.PlayerA]++
		st.degree[e.PlayerB]++
		if st.first.IsZero() || (!e.FirstPlayedTogether.IsZero() && e.FirstPlayedTogether.Before(st.first)) {
			st.first = e.FirstPlayedTogether
		}
		if e.LastPlayedTogether.After(st.last) {
			st.last = e.LastPlayedTogether
		}
	}

	for _, p := range plays {
		if l, ok := memberOf[p.Player]; ok {
			acc[l].servers[p.ServerID] += p.SessionCount
		}
	}

	communities := make([]graph.Community, 0, len(groups))
	for l, members := range groups {
		st := acc[l]
		n := len(members)
		c := graph.Community{
			ID:             CommunityID(l),
			Leader:         l,
			Members:        members,
			CoreMembers:    topMembers(members, st.degree, constants.CommunityTopN),
			PrimaryServers: topServers(st.servers, constants.CommunityTopN),
			FormationDate:  st.first,
			LastActiveDate: st.last,
			CohesionScore:  Cohesion(st.edges, n),
		}
		if st.edges > 0 {
			c.AvgSessionsPerPair = float64(st.sessions) / float64(st.edges)
		}
		communities = append(communities, c)
	}

	sort.Slice(communities, func(i, j int) bool {
		if len(communities[i].Members) != len(communities[j].Members) {
			return len(communities[i].Members) > len(communities[j].Members)
		}
		return communities[i].Leader < communities[j].Leader
	})
	return communities
}

// Cohesion is the edge density 2e/(n(n-1)) of a community's induced subgraph
func Cohesion(internalEdges, n int) float64 {
	if n < 2 {
		return 0
	}
	return 2 * float64(internalEdges) / float64(n*(n-1))
}

func topMembers(members []string, degree map[string]int, n int) []string {
	ranked := append([]string(nil), members...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if degree[ranked[i]] != degree[ranked[j]] {
			return degree[ranked[i]] > degree[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func topServers(counts map[string]int64, n int) []string {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}
