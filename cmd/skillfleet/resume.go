package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Qredence/skill-fleet/internal/pipeline"
)

var (
	resumeAction      string
	resumeAnswers     []string
	resumeName        string
	resumeDescription string
	resumeFeedback    string
	resumeChanges     []string
)

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Answer a pending request and continue a suspended job",
	Long: `Resume continues a job suspended for human input. The flags that apply
depend on the pending request:

  clarify        --answer q1="..." (repeatable)
  confirm        --action proceed
  structure_fix  --name and/or --description
  preview        --action proceed, or --action revise with --feedback
  review         --action proceed, or --action revise with --feedback

--action cancel terminates the job from any suspension.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeAction, "action", "proceed", "Decision: proceed, revise, or cancel")
	resumeCmd.Flags().StringArrayVar(&resumeAnswers, "answer", nil, "Clarify answer as id=text (repeatable)")
	resumeCmd.Flags().StringVar(&resumeName, "name", "", "Corrected skill name for structure_fix")
	resumeCmd.Flags().StringVar(&resumeDescription, "description", "", "Corrected description for structure_fix")
	resumeCmd.Flags().StringVar(&resumeFeedback, "feedback", "", "Free-text revision feedback")
	resumeCmd.Flags().StringArrayVar(&resumeChanges, "change", nil, "Specific requested change (repeatable)")
	resumeCmd.Flags().BoolVar(&showEvents, "events", false, "Stream progress events to stderr as JSON lines")
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	jobID, err := parseJobID(args[0])
	if err != nil {
		return err
	}

	answers, err := parseKeyValues(resumeAnswers)
	if err != nil {
		return err
	}

	resp := pipeline.HITLResponse{
		Action:               pipeline.HITLAction(resumeAction),
		Answers:              answers,
		CorrectedName:        resumeName,
		CorrectedDescription: resumeDescription,
		Feedback:             resumeFeedback,
		RequestedChanges:     resumeChanges,
	}
	if !resp.Action.IsValid() {
		return fmt.Errorf("invalid action %q: must be proceed, revise, or cancel", resumeAction)
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	done := watchEvents(cmd, a)
	result, err := a.controller.Resume(ctx, jobID, resp)
	done()
	if err != nil {
		return err
	}

	return printResult(cmd, result)
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending, suspended, or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseJobID(args[0])
		if err != nil {
			return err
		}

		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.controller.Cancel(cmd.Context(), jobID); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", jobID)
		return nil
	},
}
