package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"squadgraph/backend/internal/sessions"
	"squadgraph/backend/pkg/config"
	"squadgraph/backend/pkg/logger"
)

// Seeds the SQLite session store with synthetic rounds. Players are split
// into squads that tend to queue together, plus one "alt" account that takes
// over from its main halfway through the range.
func main() {
	dbPath := flag.String("db", "", "Session database path (defaults to SESSION_DB_PATH)")
	servers := flag.Int("servers", 4, "Number of servers")
	squads := flag.Int("squads", 6, "Number of squads")
	squadSize := flag.Int("squad-size", 4, "Players per squad")
	rounds := flag.Int("rounds", 500, "Rounds to generate")
	days := flag.Int("days", 30, "Days of history ending now")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	if err := logger.Init("development", ""); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting session store seeding...")

	path := *dbPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal("Failed to load configuration", zap.Error(err))
		}
		path = cfg.SessionDBPath
	}

	ctx := context.Background()
	store, err := sessions.Open(ctx, path, 1)
	if err != nil {
		log.Fatal("Failed to open session store", zap.Error(err))
	}
	defer store.Close()

	rng := rand.New(rand.NewSource(*seed))

	// Create servers
	serverIDs := make([]string, *servers)
	for i := range serverIDs {
		serverIDs[i] = fmt.Sprintf("srv-%02d", i+1)
		if err := store.UpsertServer(ctx, sessions.ServerInfo{
			ID:     serverIDs[i],
			Name:   fmt.Sprintf("Community Server #%d", i+1),
			GameID: "bf1942",
		}); err != nil {
			log.Fatal("Failed to create server", zap.String("server", serverIDs[i]), zap.Error(err))
		}
	}

	// Build squads
	roster := make([][]string, *squads)
	for s := range roster {
		for p := 0; p < *squadSize; p++ {
			roster[s] = append(roster[s], fmt.Sprintf("sq%d-player%d", s+1, p+1))
		}
	}
	primary, alt := roster[0][0], roster[0][0]+"_alt"

	maps := []string{"wake_island", "el_alamein", "stalingrad", "omaha_beach"}
	end := time.Now().UTC().Truncate(time.Minute)
	start := end.AddDate(0, 0, -*days)
	step := end.Sub(start) / time.Duration(*rounds)
	switchover := start.Add(end.Sub(start) / 2)

	written := 0
	for i := 0; i < *rounds; i++ {
		roundStart := start.Add(time.Duration(i) * step)
		server := serverIDs[rng.Intn(len(serverIDs))]

		// two or three squads per round, each sending most of its members
		var players []string
		for _, s := range rng.Perm(len(roster))[:min(2+rng.Intn(2), len(roster))] {
			for _, p := range roster[s] {
				if rng.Float64() > 0.8 {
					continue
				}
				if p == primary && roundStart.After(switchover) {
					p = alt
				}
				players = append(players, p)
			}
		}

		round := sessions.Round{
			ID:        fmt.Sprintf("seed-%06d", i),
			ServerID:  server,
			MapName:   maps[rng.Intn(len(maps))],
			StartTime: roundStart,
			EndTime:   roundStart.Add(25 * time.Minute),
		}
		for _, p := range players {
			kills, deaths := 0, 0
			ping := 30 + rng.Intn(60)
			for tick := 0; tick < 5; tick++ {
				kills += rng.Intn(3)
				deaths += rng.Intn(2)
				round.Observations = append(round.Observations, sessions.Observation{
					PlayerName: p,
					Timestamp:  roundStart.Add(time.Duration(tick*5) * time.Minute),
					Kills:      kills,
					Deaths:     deaths,
					Score:      kills*10 - deaths*2,
					Ping:       ping + rng.Intn(5),
				})
			}
		}

		if err := store.AppendRound(ctx, round, sessions.SessionsFromRound(round)); err != nil {
			log.Fatal("Failed to append round", zap.String("round_id", round.ID), zap.Error(err))
		}
		written++
	}

	log.Info("Seeding complete",
		zap.String("db", path),
		zap.Int("servers", len(serverIDs)),
		zap.Int("players", (*squads)*(*squadSize)+1),
		zap.Int("rounds", written),
		zap.String("alias_pair", primary+" / "+alt),
	)
}
