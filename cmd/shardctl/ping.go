package main

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/7930navid/posts-server/internal/config"
	"github.com/7930navid/posts-server/internal/database"
	"github.com/7930navid/posts-server/internal/keepalive"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping every configured posts store once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		stores, err := database.Connect(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close(stores) }()

		targets := make([]keepalive.Target, len(stores))
		for i, st := range stores {
			targets[i] = keepalive.Target{Index: st.Index, Name: st.Name, Ping: st.Ping}
		}
		monitor := keepalive.NewMonitor(targets, cfg.KeepAliveInterval, keepalive.WithTimeout(cfg.QueryTimeout))

		printStatuses(cmd.OutOrStdout(), monitor.CheckNow(context.Background()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func printStatuses(w io.Writer, statuses []keepalive.Status) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Store", "Name", "State", "Checked", "Error"})
	table.SetAutoWrapText(false)
	for _, st := range statuses {
		table.Append([]string{
			strconv.Itoa(st.Store),
			st.Name,
			string(st.State),
			st.LastCheck.Format(time.RFC3339),
			st.LastError,
		})
	}
	table.Render()
}
