package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/mindthecat/internal/model"
	"github.com/dukerupert/mindthecat/internal/mute"
	"github.com/dukerupert/mindthecat/internal/notify"
	"github.com/dukerupert/mindthecat/internal/push"
	"github.com/dukerupert/mindthecat/internal/store"
	"github.com/dukerupert/mindthecat/internal/tracker"
)

func newVAPIDKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vapid_public_key: %s\nvapid_private_key: %s\n", pub, priv)
			return nil
		},
	}
}

func newSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Send overdue push notifications once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(*configPath, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			svc := push.NewService(push.Config{
				VAPIDPublicKey:  e.cfg.VAPIDPublicKey,
				VAPIDPrivateKey: e.cfg.VAPIDPrivateKey,
				Subscriber:      e.cfg.VAPIDSubscriber,
			})
			if !svc.Enabled() {
				return errors.New("VAPID keys are not configured")
			}

			prefs := store.NewPreferenceStore(e.db)
			sweeper := push.NewSweeper(e.cfg.SweepSchedule,
				store.NewGroupStore(e.db), store.NewChoreStore(e.db), store.NewPushStore(e.db),
				func(id string) mute.Preferences { return prefs.Device(id) },
				svc, e.logger.With("component", "sweeper"))

			sent, err := sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d notifications\n", sent)
			return nil
		},
	}
}

func newCheckCmd(configPath *string) *cobra.Command {
	var groupID, deviceID string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Print a group's chore progress and log pending notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if groupID == "" {
				return errors.New("--group is required")
			}
			e, err := open(*configPath, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			chores := store.NewChoreStore(e.db)
			svc := tracker.NewService(chores, store.NewGroupStore(e.db), e.logger)

			now := time.Now()
			view, err := svc.GroupView(ctx, groupID, now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, cv := range view.Chores {
				state := "no schedule"
				if cv.Progress != nil {
					state = fmt.Sprintf("%5.1f%% %-7s %s", cv.Progress.Percent, cv.Progress.Status, cv.Progress.TimeText)
				} else if cv.Chore.IntervalValue != nil {
					state = "never done"
				}
				fmt.Fprintf(out, "%-24s %s  (last done %s)\n", cv.Chore.Name, state, cv.LastDoneText)
			}
			fmt.Fprintf(out, "%d of %d overdue\n", view.Stats.OverdueCount, view.Stats.Total)

			if deviceID == "" {
				deviceID = e.cfg.DeviceID
			}
			list := make([]model.Chore, 0, len(view.Chores))
			for _, cv := range view.Chores {
				list = append(list, cv.Chore)
			}
			gate := notify.NewGate(mute.NewRegistry(store.NewPreferenceStore(e.db).Device(deviceID)),
				notify.NewLogSink(true, e.logger.With("component", "notify")), e.logger)
			if _, err := gate.Evaluate(ctx, list, now); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "group id")
	cmd.Flags().StringVar(&deviceID, "device", "", "device whose mutes apply (default: config device_id)")
	return cmd
}

func newUserCmd(configPath *string) *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}

	user.AddCommand(&cobra.Command{
		Use:   "create <display-name>",
		Short: "Create a user and print its bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(*configPath, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			u, token, err := store.NewUserStore(e.db).Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:    %s\ntoken: %s\n", u.ID, token)
			return nil
		},
	})
	return user
}

func newGroupCmd(configPath *string) *cobra.Command {
	group := &cobra.Command{Use: "group", Short: "Manage groups"}

	var userID string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group with --user as its admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			e, err := open(*configPath, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			g, err := store.NewGroupStore(e.db).Create(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id: %s\n", g.ID)
			return nil
		},
	}
	create.Flags().StringVar(&userID, "user", "", "id of the creating user")

	var admin bool
	add := &cobra.Command{
		Use:   "add <group-id> <user-id>",
		Short: "Add a user to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(*configPath, nil)
			if err != nil {
				return err
			}
			defer e.Close()
			return addMember(cmd.Context(), store.NewGroupStore(e.db), store.NewUserStore(e.db), args[0], args[1], admin)
		},
	}
	add.Flags().BoolVar(&admin, "admin", false, "mark the member as admin")

	group.AddCommand(create, add)
	return group
}

func addMember(ctx context.Context, groups *store.GroupStore, users *store.UserStore, groupID, userID string, admin bool) error {
	g, err := groups.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("group %s not found", groupID)
	}
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s not found", userID)
	}
	return groups.AddMember(ctx, groupID, userID, admin)
}
