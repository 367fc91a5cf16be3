package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/coffeematch/internal/engine"
	"github.com/roach88/coffeematch/internal/model"
)

// NewRoundCommand creates the round command.
func NewRoundCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "round [period]",
		Short: "Run the matching round for a period (default: current month)",
		Long: `Pair every subscriber for the period and notify them of their partners.
Running a round that already completed changes nothing.

Example:
  coffeematch round 2025-03`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			period, err := a.periodArg(args, false)
			if err != nil {
				return out.Fail("round", err)
			}
			res, err := a.engine.RunRound(cmd.Context(), period)
			if err != nil {
				return out.Fail("round", err)
			}
			return out.Success(res, func(w io.Writer) {
				if res.AlreadyCompleted {
					fmt.Fprintf(w, "Round %s already completed with %d match(es)\n", res.PeriodKey, res.PairsCreated)
					return
				}
				fmt.Fprintf(w, "Round %s: %d subscriber(s), %d match(es), %d notified, %d failed\n",
					res.PeriodKey, res.SubscriberCount, res.PairsCreated, res.NotificationsSent, res.DeliveryFailures)
			})
		},
	}
}

// NewFollowUpsCommand creates the followups command.
func NewFollowUpsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "followups [period]",
		Short: "Ask every matched participant whether they met (default: current month)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			period, err := a.periodArg(args, false)
			if err != nil {
				return out.Fail("follow-ups", err)
			}
			res, err := a.engine.DispatchFollowUps(cmd.Context(), period)
			if err != nil {
				return out.Fail("follow-ups", err)
			}
			return out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Follow-ups %s: %d created, %d re-prompted, %d already answered, %d failed\n",
					res.PeriodKey, res.Created, res.Reprompted, res.Skipped, res.DeliveryFailures)
			})
		},
	}
}

// NewAnswerCommand creates the answer command.
func NewAnswerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <follow-up-id> <yes|no>",
		Short: "Record a participant's answer to a follow-up",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			answer, ok := model.ParseAnswer(args[1])
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("answer must be yes or no, got %q", args[1]))
			}

			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			res, err := a.engine.RecordAnswer(cmd.Context(), args[0], answer)
			if err != nil {
				return out.Fail("answer", err)
			}
			return out.Success(res, func(w io.Writer) {
				o := res.Outcome
				fmt.Fprintf(w, "Recorded %s for %s (%s); consecutive misses: %d\n",
					strings.TrimPrefix(string(res.FollowUp.State), "answered_"), o.ParticipantID, res.PeriodKey, o.ConsecutiveMisses)
				if o.Unsubscribed {
					fmt.Fprintf(w, "%s was unsubscribed after %d missed meetings\n", o.ParticipantID, o.Misses)
				}
			})
		},
	}
}

// NewRematchCommand creates the rematch command.
func NewRematchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rematch <match-id> <participant-id>",
		Short: "Record that a participant wants a different partner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			if err := a.engine.RequestRematch(cmd.Context(), args[0], args[1]); err != nil {
				return out.Fail("rematch", err)
			}
			return out.Success(map[string]string{"match_id": args[0], "participant_id": args[1]}, func(w io.Writer) {
				fmt.Fprintf(w, "Rematch requested by %s for match %s\n", args[1], args[0])
			})
		},
	}
}

// NewInactivityCommand creates the inactivity command.
func NewInactivityCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inactivity [period]",
		Short: "Expire unanswered follow-ups and remove inactive participants (default: previous month)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.formatter(cmd)
			period, err := a.periodArg(args, true)
			if err != nil {
				return out.Fail("inactivity check", err)
			}
			res, err := a.engine.RunInactivityCheck(cmd.Context(), period)
			if err != nil {
				return out.Fail("inactivity check", err)
			}
			return out.Success(res, func(w io.Writer) { printInactivity(w, res) })
		},
	}
}

func printInactivity(w io.Writer, res engine.InactivityResult) {
	fmt.Fprintf(w, "Inactivity %s: %d follow-up(s) expired, %d participant(s) removed\n",
		res.PeriodKey, res.Expired, len(res.Removed))
	for _, id := range res.Removed {
		fmt.Fprintf(w, "  removed %s\n", id)
	}
}
