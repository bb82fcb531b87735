package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/duskpoint/reverie/internal/scheduler"
	"github.com/duskpoint/reverie/internal/workflow"
)

// buildServeCmd creates the "serve" command: scheduler daemon plus the
// optional metrics listener.
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tick scheduler daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := bootstrap(ctx, configPathOrDefault(configPath), true)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
				defer done()
				_ = rt.close(shutdownCtx)
			}()

			sched := scheduler.New(rt.engine,
				scheduler.WithLogger(rt.log),
			)
			for _, ts := range rt.cfg.Schedules {
				if err := sched.Add(ts); err != nil {
					return err
				}
			}

			var metricsSrv *http.Server
			if rt.cfg.Metrics.Enabled {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsSrv = &http.Server{Addr: rt.cfg.Metrics.Listen, Handler: mux}
				go func() {
					rt.log.Info("metrics listener started", "addr", rt.cfg.Metrics.Listen)
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						rt.log.Error("metrics listener failed", "error", err)
					}
				}()
			}

			sched.Start()
			rt.log.Info("reverie serving", "schedules", len(rt.cfg.Schedules))

			<-ctx.Done()
			rt.log.Info("shutting down")
			sched.Stop()
			if metricsSrv != nil {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	return cmd
}

// buildRunCmd creates the "run" command: one workflow cycle for one actor,
// with the final state printed as JSON.
func buildRunCmd() *cobra.Command {
	var (
		configPath  string
		actorID     string
		triggerType string
		senderID    string
		content     string
		subjectID   string
		isResponse  bool
		persistence int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single decision cycle for one actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				return fmt.Errorf("--actor is required")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := bootstrap(ctx, configPathOrDefault(configPath), false)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = rt.close(closeCtx)
			}()

			scope := workflow.Scope{
				ActorID: actorID,
				Trigger: workflow.Trigger{
					Type:       workflow.TriggerType(triggerType),
					EventID:    subjectID,
					UserID:     senderID,
					Timestamp:  time.Now(),
					IsResponse: isResponse,
				},
				Subject: buildSubject(triggerType, subjectID, senderID, content, persistence),
			}

			state, runErr := rt.engine.Run(ctx, scope)

			out, err := json.MarshalIndent(summarizeRun(state), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return runErr
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&actorID, "actor", "", "Actor id to run (required)")
	cmd.Flags().StringVar(&triggerType, "trigger", "message", "Trigger type: message|mention|comment|battle|proposal|tick")
	cmd.Flags().StringVar(&senderID, "sender", "", "Triggering user or actor id")
	cmd.Flags().StringVar(&content, "content", "", "Subject content")
	cmd.Flags().StringVar(&subjectID, "subject", "", "Subject id")
	cmd.Flags().BoolVar(&isResponse, "is-response", false, "Trigger is a reply to a prior decline")
	cmd.Flags().IntVar(&persistence, "persistence", 0, "How many times the sender repeated this request")
	return cmd
}

// buildSubject assembles the trigger subject from CLI flags.
func buildSubject(triggerType, subjectID, senderID, content string, persistence int) workflow.Subject {
	switch workflow.TriggerType(triggerType) {
	case workflow.TriggerMessage:
		return workflow.DirectMessage{
			ID:               subjectID,
			FromID:           senderID,
			Content:          content,
			PersistenceLevel: persistence,
		}
	case workflow.TriggerMention, workflow.TriggerComment:
		return workflow.Comment{ID: subjectID, AuthorID: senderID, Content: content}
	case workflow.TriggerBattle:
		return workflow.Battle{ID: subjectID, ChallengerID: senderID, Stakes: content}
	case workflow.TriggerProposal:
		return workflow.Proposal{ID: subjectID, ProposerID: senderID, Title: content}
	default:
		return nil
	}
}

// runSummary is the printable outcome of one run.
type runSummary struct {
	ActorID        string                  `json:"actor_id"`
	Iterations     int                     `json:"iterations"`
	ContinueReason workflow.ContinueReason `json:"continue_reason"`
	Action         *workflow.Action        `json:"action,omitempty"`
	Result         *workflow.Result        `json:"result,omitempty"`
	Errors         []string                `json:"errors,omitempty"`
}

func summarizeRun(state *workflow.State) runSummary {
	return runSummary{
		ActorID:        state.Scope.ActorID,
		Iterations:     state.Loop.Iteration,
		ContinueReason: state.Loop.ContinueReason,
		Action:         state.Action,
		Result:         state.Result,
		Errors:         state.Errors,
	}
}
