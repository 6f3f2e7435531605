package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/cycle"
	"github.com/spigell/job-hunter/internal/jobs"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single search cycle in the foreground",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("ask", "a", false, "ask for confirmation before sending the report to Telegram")
}

func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger()
	defer log.Sync() //nolint:errcheck

	log.Info("starting the job-hunter", zap.String("version", version))

	cfg, err := loadConfig(log)
	if err != nil {
		log.Fatal("loading the config", zap.Error(err))
	}

	p, err := newPipeline(ctx, cfg, log)
	if err != nil {
		log.Fatal("preparing the pipeline", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api-key in the configuration file"))
	}

	lock, err := p.lockReport()
	if err != nil {
		log.Fatal("locking the report log", zap.Error(err))
	}
	defer lock.Unlock() //nolint:errcheck

	var n cycle.Notifier = p.notifier
	if ask, _ := cmd.Flags().GetBool("ask"); ask {
		n = &confirmingNotifier{next: p.notifier, confirm: promptConfirm, logger: log}
	}

	res := p.runner(n).Run(ctx)
	if res.Err != nil {
		log.Error("cycle failed", zap.Error(res.Err))
		return
	}

	log.Info("exiting",
		zap.Int("candidates", res.Candidates),
		zap.Int("approved", res.Approved),
		zap.Duration("duration", res.Duration),
	)
}

// confirmingNotifier shows the batch on the terminal and forwards it only
// after the user agrees.
type confirmingNotifier struct {
	next    cycle.Notifier
	confirm func(label string) (bool, error)
	logger  *zap.Logger
}

func (c *confirmingNotifier) Report(ctx context.Context, batch jobs.Batch) {
	for i, e := range batch {
		fmt.Printf("\n[%d/%d] %s\n%s\n", i+1, batch.Len(), e.URL, e.Text)
	}

	ok, err := c.confirm(fmt.Sprintf("Send %d matching jobs to Telegram?", batch.Len()))
	if err != nil {
		if !errors.Is(err, promptui.ErrInterrupt) {
			c.logger.Error("confirmation prompt failed", zap.Error(err))
		}
		return
	}

	if !ok {
		c.logger.Info("report not sent", zap.String("reason", "got no from prompt"))
		return
	}

	c.next.Report(ctx, batch)
}

func promptConfirm(label string) (bool, error) {
	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}

	_, action, err := prompt.Run()
	if err != nil {
		return false, err
	}

	return action == PromptYes, nil
}
