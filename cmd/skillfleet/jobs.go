package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Qredence/skill-fleet/internal/pipeline"
)

var jobsStatus string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect generation jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job in full, including any pending request",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job record",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsDelete,
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "Filter by status")
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	filter := pipeline.JobFilter{}
	if jobsStatus != "" {
		status := pipeline.JobStatus(jobsStatus)
		if !status.IsValid() {
			return fmt.Errorf("unknown status %q", jobsStatus)
		}
		filter.Status = &status
	}

	jobs, err := a.store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPHASE\tUPDATED\tTASK")
	for _, job := range jobs {
		task := job.TaskDescription
		if len(task) > 60 {
			task = task[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.Status, job.CurrentPhase,
			job.UpdatedAt.Format("2006-01-02 15:04"), task)
	}
	return w.Flush()
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	jobID, err := parseJobID(args[0])
	if err != nil {
		return err
	}

	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.store.Get(cmd.Context(), jobID)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runJobsDelete(cmd *cobra.Command, args []string) error {
	jobID, err := parseJobID(args[0])
	if err != nil {
		return err
	}

	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Delete(cmd.Context(), jobID); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Job %s deleted\n", jobID)
	return nil
}
