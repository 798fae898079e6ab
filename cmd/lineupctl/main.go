// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// lineupctl inspects and maintains a lineupkeeper data directory offline.
// Every command prints JSON.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ttbt-io/lineupkeeper/backend"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type stores struct {
	games *backend.GameStore
	teams *backend.TeamStore
}

func openStores(c *cli.Context) (*stores, error) {
	dir := c.String("data-dir")
	s, _, err := backend.OpenStorage(dir, os.Getenv("LK_MASTER_KEY"))
	if err != nil {
		return nil, err
	}
	return &stores{
		games: backend.NewGameStore(dir, s),
		teams: backend.NewTeamStore(dir, s),
	}, nil
}

// loadGame returns a live game and its team.
func (s *stores) loadGame(id string) (*backend.Game, *backend.Team, error) {
	g, err := s.games.LoadGame(id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading game %s: %w", id, err)
	}
	if g.Status == "deleted" {
		return nil, nil, fmt.Errorf("game %s is deleted", id)
	}
	t, err := s.teams.LoadTeam(g.TeamID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading team %s: %w", g.TeamID, err)
	}
	return g, t, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newApp() *cli.App {
	gameFlag := &cli.StringFlag{Name: "game", Usage: "game id", Required: true}
	return &cli.App{
		Name:  "lineupctl",
		Usage: "inspect and maintain lineupkeeper data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Value:   "data",
				Usage:   "directory for game and team data",
				EnvVars: []string{"LK_DATA_DIR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "validate a game's rotation",
				Flags: []cli.Flag{gameFlag},
				Action: func(c *cli.Context) error {
					s, err := openStores(c)
					if err != nil {
						return err
					}
					g, t, err := s.loadGame(c.String("game"))
					if err != nil {
						return err
					}
					report, err := backend.ValidateGame(g, t, nil)
					if err != nil {
						return err
					}
					if err := printJSON(c, report); err != nil {
						return err
					}
					if n := report.StructuralCount(); n > 0 {
						return fmt.Errorf("rotation has %d structural violations", n)
					}
					return nil
				},
			},
			{
				Name:  "autofill",
				Usage: "fill empty positions of one inning or all innings",
				Flags: []cli.Flag{
					gameFlag,
					&cli.IntFlag{Name: "inning", Usage: "inning to fill (default: all)"},
					&cli.BoolFlag{Name: "write", Usage: "save the result"},
				},
				Action: func(c *cli.Context) error {
					s, err := openStores(c)
					if err != nil {
						return err
					}
					g, t, err := s.loadGame(c.String("game"))
					if err != nil {
						return err
					}
					e := backend.Edit{Type: backend.EditAutofillAll}
					if c.IsSet("inning") {
						e = backend.Edit{Type: backend.EditAutofillInning, Inning: c.Int("inning")}
					}
					l := g.Lineup.Clone()
					if err := backend.ApplyEdit(&l, e, t.Roster, g.InningCount()); err != nil {
						return err
					}
					if c.Bool("write") {
						if err := s.games.SaveLineup(g.ID, l); err != nil {
							return err
						}
					}
					return printJSON(c, l.Rotation)
				},
			},
			{
				Name:  "analytics",
				Usage: "season report for a team",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "team", Usage: "team id", Required: true},
					&cli.StringFlag{Name: "q", Usage: "game filter, e.g. month:2025-04"},
				},
				Action: func(c *cli.Context) error {
					s, err := openStores(c)
					if err != nil {
						return err
					}
					t, err := s.teams.LoadTeam(c.String("team"))
					if err != nil {
						return fmt.Errorf("loading team %s: %w", c.String("team"), err)
					}
					games, err := s.games.ListGamesForTeam(t.ID)
					if err != nil {
						return err
					}
					report, err := backend.TeamReport(t, games, c.String("q"))
					if err != nil {
						return err
					}
					return printJSON(c, report)
				},
			},
			{
				Name:  "summary",
				Usage: "per player fielding summary of a game",
				Flags: []cli.Flag{
					gameFlag,
					&cli.StringFlag{Name: "player", Usage: "only this player id"},
				},
				Action: func(c *cli.Context) error {
					s, err := openStores(c)
					if err != nil {
						return err
					}
					g, t, err := s.loadGame(c.String("game"))
					if err != nil {
						return err
					}
					players, err := backend.SummarizeGame(g, t, lineup.PlayerID(c.String("player")))
					if err != nil {
						return err
					}
					return printJSON(c, players)
				},
			},
		},
	}
}
