package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/coffeematch/internal/model"
)

// SubscribeOptions holds flags for the subscribe command.
type SubscribeOptions struct {
	*RootOptions
	Name     string
	Username string
}

// NewSubscribeCommand creates the subscribe command.
func NewSubscribeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubscribeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "subscribe <participant-id>",
		Short: "Subscribe a participant to monthly matching",
		Long: `Subscribe a participant, creating it on first use. Subscribing again
refreshes the display name and username.

Example:
  coffeematch subscribe 1001 --name "Ada Lovelace" --username ada`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			p, err := a.engine.Subscribe(cmd.Context(), args[0], model.Profile{
				DisplayName: opts.Name,
				Username:    opts.Username,
			})
			if err != nil {
				return out.Fail("subscribe", err)
			}
			return out.Success(p, func(w io.Writer) {
				fmt.Fprintf(w, "Subscribed %s\n", p.Mention())
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Username, "username", "", "messaging handle")

	return cmd
}

// NewUnsubscribeCommand creates the unsubscribe command.
func NewUnsubscribeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <participant-id>",
		Short: "Unsubscribe a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			if err := a.engine.Unsubscribe(cmd.Context(), args[0]); err != nil {
				return out.Fail("unsubscribe", err)
			}
			return out.Success(map[string]string{"participant_id": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Unsubscribed %s\n", args[0])
			})
		},
	}
}

// NewSubscribersCommand creates the subscribers command.
func NewSubscribersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribers",
		Short: "List subscribed participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			subs, err := a.engine.ListSubscribers(cmd.Context())
			if err != nil {
				return out.Fail("list subscribers", err)
			}
			if subs == nil {
				subs = []model.Participant{}
			}
			return out.Success(subs, func(w io.Writer) {
				for _, p := range subs {
					reach := ""
					if !p.Reachable {
						reach = " (unreachable)"
					}
					fmt.Fprintf(w, "%s\t%s%s\n", p.ID, p.Mention(), reach)
				}
				fmt.Fprintf(w, "%d subscriber(s)\n", len(subs))
			})
		},
	}
}

// NewUnreachableCommand creates the unreachable command.
func NewUnreachableCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unreachable <participant-id>",
		Short: "Mark a participant as unreachable by the messaging gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			if err := a.engine.MarkUnreachable(cmd.Context(), args[0]); err != nil {
				return out.Fail("mark unreachable", err)
			}
			return out.Success(map[string]string{"participant_id": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Marked %s unreachable\n", args[0])
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [participant-id]",
		Short: "Show system status, or one participant's status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			if len(args) == 1 {
				st, err := a.engine.GetParticipantStatus(cmd.Context(), args[0])
				if err != nil {
					return out.Fail("status", err)
				}
				return out.Success(st, func(w io.Writer) {
					p := st.Participant
					fmt.Fprintf(w, "%s subscribed=%t reachable=%t misses=%d/%d\n",
						p.Mention(), p.Subscribed, p.Reachable, st.Streak.ConsecutiveMisses, st.Threshold)
					if st.Current == nil {
						fmt.Fprintln(w, "No match in the latest round")
						return
					}
					names := make([]string, 0, len(st.Current.Partners))
					for _, partner := range st.Current.Partners {
						names = append(names, partner.Mention())
					}
					fmt.Fprintf(w, "Matched in %s with %v (match %s)\n", st.Current.PeriodKey, names, st.Current.Match.ID)
					if f := st.Current.FollowUp; f != nil {
						fmt.Fprintf(w, "Follow-up %s: %s\n", f.ID, f.State)
					}
				})
			}

			st, err := a.engine.GetStatus(cmd.Context())
			if err != nil {
				return out.Fail("status", err)
			}
			return out.Success(st, func(w io.Writer) {
				fmt.Fprintf(w, "Subscribers: %d\n", st.SubscriberCount)
				if r := st.LastRound; r != nil {
					fmt.Fprintf(w, "Last round: %s (%s, %d subscribers, %d matches)\n",
						r.PeriodKey, r.Status, r.SubscriberCount, r.Matches)
				} else {
					fmt.Fprintln(w, "Last round: none")
				}
			})
		},
	}
}
