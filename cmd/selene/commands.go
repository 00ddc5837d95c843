package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"selene/internal/identity"
	"selene/internal/pipeline"
	"selene/internal/store"
)

// chatCmd runs the interactive loop.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func runChat() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer shutdown(a)

	mode := identity.ParseMode(modeFlag)
	fmt.Printf("selene ready (mode: %s, session: %s). Ctrl-D to exit.\n", mode, sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		turn, err := a.driver.RunTurn(ctx, sessionID, userID, identityID, message, mode)
		if err != nil {
			fmt.Fprintln(os.Stderr, "turn failed:", err)
			continue
		}
		printTurn(turn)
	}
	return scanner.Err()
}

// turnCmd handles exactly one message.
var turnCmd = &cobra.Command{
	Use:   "turn <message>",
	Short: "Run a single turn: one message in, one response out",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer shutdown(a)

		turn, err := a.driver.RunTurn(ctx, sessionID, userID, identityID, strings.Join(args, " "), identity.ParseMode(modeFlag))
		if err != nil {
			return err
		}
		printTurn(turn)
		return nil
	},
}

func printTurn(turn *pipeline.Turn) {
	output := turn.State.FinalOutput
	if strings.HasPrefix(output, pipeline.ErrorMarker) {
		output = "Sorry, something went wrong generating that response. Please try again."
	}
	fmt.Println(output)
	if verbose {
		fmt.Fprintf(os.Stderr, "[route=%s class=%s risk=%s source=%s attempts=%d]\n",
			turn.Decision.Route, turn.Decision.Class, turn.Decision.RiskIfWrong,
			turn.Decision.DecisionSource, turn.State.Attempts)
	}
}

// critiqueCmd reports queue state.
var critiqueCmd = &cobra.Command{
	Use:   "critique",
	Short: "Show critique queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.New(cfg.Store.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		for _, status := range []string{store.JobQueued, store.JobProcessing, store.JobCompleted, store.JobFailed} {
			n, err := st.CountCritiqueJobs(status)
			if err != nil {
				return err
			}
			fmt.Printf("%-12s %d\n", status, n)
		}
		return nil
	},
}

// configCmd prints the effective configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func shutdown(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.close(ctx)
}
