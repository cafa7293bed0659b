package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dukerupert/mindthecat/internal/logging"
	"github.com/dukerupert/mindthecat/internal/mute"
	"github.com/dukerupert/mindthecat/internal/notify"
	"github.com/dukerupert/mindthecat/internal/refresh"
	"github.com/dukerupert/mindthecat/internal/session"
	"github.com/dukerupert/mindthecat/internal/store"
	"github.com/dukerupert/mindthecat/internal/tracker"
	"github.com/dukerupert/mindthecat/internal/tui"
)

func newWatchCmd(configPath *string) *cobra.Command {
	var groupID, userID, deviceID, logFile string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch chore progress in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}

			// The terminal belongs to the UI, so logs go to a file or nowhere.
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				w = f
			}

			e, err := open(*configPath, logging.New(w, "debug", "text"))
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			u, err := store.NewUserStore(e.db).GetByID(ctx, userID)
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("user %s not found", userID)
			}

			if deviceID == "" {
				deviceID = e.cfg.DeviceID
			}
			if deviceID == "" {
				deviceID = "terminal-" + u.ID
			}

			chores := store.NewChoreStore(e.db)
			groups := store.NewGroupStore(e.db)
			prefs := store.NewPreferenceStore(e.db)
			svc := tracker.NewService(chores, groups, e.logger.With("component", "tracker"))

			bridge := tui.NewBridge(!quiet)
			defer bridge.Close()
			gate := notify.NewGate(mute.NewRegistry(prefs.Device(deviceID)), bridge, e.logger.With("component", "gate"))
			sess := session.New(svc, gate, bridge, bridge, refresh.Options{
				ProgressInterval: e.cfg.ProgressInterval,
				StatsInterval:    e.cfg.StatsInterval,
			}, e.logger.With("component", "session"))
			defer sess.Close()
			sess.UserReady(ctx, u.Identity())

			p := tea.NewProgram(tui.New(ctx, sess, bridge.Events(), groupID), tea.WithAltScreen(), tea.WithContext(ctx))
			_, err = p.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "group to open (default: group list)")
	cmd.Flags().StringVar(&userID, "user", "", "user id to watch as")
	cmd.Flags().StringVar(&deviceID, "device", "", "device id for mutes (default: config device_id)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "do not show overdue banners")
	return cmd
}
