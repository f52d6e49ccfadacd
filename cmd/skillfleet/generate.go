package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Qredence/skill-fleet/internal/events"
	"github.com/Qredence/skill-fleet/internal/pipeline"
	"github.com/Qredence/skill-fleet/internal/skill"
	"github.com/Qredence/skill-fleet/internal/types"
)

var (
	generateStyle   string
	generatePreview bool
	generateReview  bool
	generateContext []string
	showEvents      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <task description>",
	Short: "Generate a skill document from a task description",
	Long: `Generate runs the full pipeline for a task description. If the pipeline
needs human input it prints the pending request and exits; answer it with
'skillfleet resume'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateStyle, "style", "", "Content style: minimal, comprehensive, or navigation_hub")
	generateCmd.Flags().BoolVar(&generatePreview, "preview", false, "Pause for a content preview before validation")
	generateCmd.Flags().BoolVar(&generateReview, "review", false, "Pause for human review on borderline validation scores")
	generateCmd.Flags().StringArrayVar(&generateContext, "context", nil, "Extra context as key=value (repeatable)")
	generateCmd.Flags().BoolVar(&showEvents, "events", false, "Stream progress events to stderr as JSON lines")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	userContext, err := parseKeyValues(generateContext)
	if err != nil {
		return err
	}

	style := skill.Style(generateStyle)
	if generateStyle == "" {
		style = skill.Style(a.cfg.Pipeline.Style)
	}

	req := pipeline.ExecuteRequest{
		TaskDescription: strings.Join(args, " "),
		UserContext:     userContext,
		Style:           style,
		EnablePreview:   generatePreview || a.cfg.Pipeline.EnablePreview,
		EnableReview:    generateReview || a.cfg.Pipeline.EnableReview,
	}

	done := watchEvents(cmd, a)
	result, err := a.controller.Execute(ctx, req)
	done()
	if err != nil {
		return err
	}

	return printResult(cmd, result)
}

// watchEvents streams bus events to stderr until the returned stop function
// is called. A no-op unless --events is set.
func watchEvents(cmd *cobra.Command, a *app) func() {
	if !showEvents {
		return func() {}
	}

	ch, unsubscribe := a.bus.Subscribe(cmd.Context(), events.Filter{}, 0)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		encoder := json.NewEncoder(os.Stderr)
		for event := range ch {
			encoder.Encode(event)
		}
	}()

	return func() {
		unsubscribe()
		wg.Wait()
	}
}

// printResult renders a pipeline result as indented JSON on stdout, with a
// resume hint for suspended jobs.
func printResult(cmd *cobra.Command, result *pipeline.PipelineResult) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if result.Status == pipeline.ResultPendingHITL {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"\nJob %s is awaiting %s input. Answer with:\n  skillfleet resume %s --action proceed ...\n",
			result.JobID, result.HITL.Kind, result.JobID)
	}

	return nil
}

// parseKeyValues turns key=value flags into a map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid context entry %q, expected key=value", pair)
		}
		result[key] = value
	}
	return result, nil
}

// parseJobID validates a job ID argument.
func parseJobID(arg string) (types.ID, error) {
	id, err := types.ParseID(arg)
	if err != nil {
		return "", fmt.Errorf("invalid job id %q: %w", arg, err)
	}
	return id, nil
}
