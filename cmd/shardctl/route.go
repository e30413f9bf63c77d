package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/7930navid/posts-server/internal/seed"
	"github.com/7930navid/posts-server/internal/shard"
)

var (
	outputFormat  string
	routeStores   int
	routeReplicas int
	planFrom      int
	planTo        int
	planStrategy  string
	planSample    int
)

var routeCmd = &cobra.Command{
	Use:   "route [email...]",
	Short: "Show the owning store of each email under hash and ring",
	Long:  "Show the owning store of each email under hash and ring. Emails are read from stdin when none are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := keysFrom(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		routes, err := routeKeys(keys, routeStores, routeReplicas)
		if err != nil {
			return err
		}
		return writeRoutes(cmd.OutOrStdout(), routes, outputFormat)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan [email...]",
	Short: "Show which emails move when the store count changes",
	Long:  "Show which emails move when the store count changes. With --sample, generated emails are used instead of arguments.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var keys []string
		if planSample > 0 {
			keys = seed.NewFactory(1).Emails(planSample)
		} else {
			var err error
			if keys, err = keysFrom(args, cmd.InOrStdin()); err != nil {
				return err
			}
		}
		p, err := planMoves(keys, planStrategy, planFrom, planTo, routeReplicas)
		if err != nil {
			return err
		}
		return writePlan(cmd.OutOrStdout(), p, outputFormat, planSample == 0)
	},
}

func init() {
	rootCmd.PersistentFlags().IntVar(&routeReplicas, "replicas", shard.DefaultReplicas, "virtual nodes per store for the ring strategy")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or yaml")

	routeCmd.Flags().IntVar(&routeStores, "stores", 2, "number of stores")
	rootCmd.AddCommand(routeCmd)

	planCmd.Flags().IntVar(&planFrom, "from", 2, "current number of stores")
	planCmd.Flags().IntVar(&planTo, "to", 3, "new number of stores")
	planCmd.Flags().StringVar(&planStrategy, "strategy", shard.StrategyRing, "hash or ring")
	planCmd.Flags().IntVar(&planSample, "sample", 0, "estimate movement over this many generated emails")
	rootCmd.AddCommand(planCmd)
}

// Route is the placement of one email.
type Route struct {
	Email string `yaml:"email"`
	Hash  int    `yaml:"hash"`
	Ring  int    `yaml:"ring"`
}

// Move is one email that changes store.
type Move struct {
	Email string `yaml:"email"`
	From  int    `yaml:"from"`
	To    int    `yaml:"to"`
}

// Plan summarizes key movement between two store counts.
type Plan struct {
	Strategy string `yaml:"strategy"`
	From     int    `yaml:"from"`
	To       int    `yaml:"to"`
	Keys     int    `yaml:"keys"`
	Moved    int    `yaml:"moved"`
	Moves    []Move `yaml:"moves"`
}

// keysFrom returns args, or one key per non-empty stdin line when args is empty.
func keysFrom(args []string, in io.Reader) ([]string, error) {
	if len(args) > 0 {
		return normalize(args), nil
	}
	if f, ok := in.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			return nil, fmt.Errorf("no emails given")
		}
	}

	var keys []string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		keys = append(keys, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	keys = normalize(keys)
	if len(keys) == 0 {
		return nil, fmt.Errorf("no emails given")
	}
	return keys, nil
}

// normalize matches the partition key form the server uses.
func normalize(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func strategyFor(name string, n, replicas int) (shard.PartitionStrategy, error) {
	switch name {
	case shard.StrategyHash:
		return shard.NewModHash(n)
	case shard.StrategyRing:
		return shard.NewRing(n, replicas)
	default:
		return nil, fmt.Errorf("strategy %q has no key placement", name)
	}
}

func routeKeys(keys []string, stores, replicas int) ([]Route, error) {
	hash, err := shard.NewModHash(stores)
	if err != nil {
		return nil, err
	}
	ring, err := shard.NewRing(stores, replicas)
	if err != nil {
		return nil, err
	}
	routes := make([]Route, len(keys))
	for i, k := range keys {
		routes[i] = Route{Email: k, Hash: hash.Route(k), Ring: ring.Route(k)}
	}
	return routes, nil
}

func planMoves(keys []string, strategy string, from, to, replicas int) (*Plan, error) {
	before, err := strategyFor(strategy, from, replicas)
	if err != nil {
		return nil, err
	}
	after, err := strategyFor(strategy, to, replicas)
	if err != nil {
		return nil, err
	}

	p := &Plan{Strategy: strategy, From: from, To: to, Keys: len(keys), Moves: []Move{}}
	for _, k := range keys {
		a, b := before.Route(k), after.Route(k)
		if a != b {
			p.Moves = append(p.Moves, Move{Email: k, From: a, To: b})
		}
	}
	p.Moved = len(p.Moves)
	return p, nil
}

func writeRoutes(w io.Writer, routes []Route, format string) error {
	switch format {
	case "yaml":
		return yaml.NewEncoder(w).Encode(routes)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Email", "Hash", "Ring"})
	table.SetAutoWrapText(false)
	for _, r := range routes {
		table.Append([]string{r.Email, strconv.Itoa(r.Hash), strconv.Itoa(r.Ring)})
	}
	table.Render()
	return nil
}

// writePlan prints the summary line, preceded by the moved keys when
// listMoves is set.
func writePlan(w io.Writer, p *Plan, format string, listMoves bool) error {
	switch format {
	case "yaml":
		if !listMoves {
			summary := *p
			summary.Moves = nil
			return yaml.NewEncoder(w).Encode(summary)
		}
		return yaml.NewEncoder(w).Encode(p)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	if listMoves {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Email", "From", "To"})
		table.SetAutoWrapText(false)
		for _, m := range p.Moves {
			table.Append([]string{m.Email, strconv.Itoa(m.From), strconv.Itoa(m.To)})
		}
		table.Render()
	}

	_, err := fmt.Fprintf(w, "%d of %d keys move (%s, %d -> %d stores)\n", p.Moved, p.Keys, p.Strategy, p.From, p.To)
	return err
}
