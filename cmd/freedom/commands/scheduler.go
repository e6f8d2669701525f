package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minqi/freedom/internal/scheduler"
	"github.com/minqi/freedom/internal/scheduler/jobs"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run scheduled jobs",
	Long: `Manages the job scheduler.

Registered jobs:
  daily_sync  - weekday evenings: catalog refresh + daily pull
  indicators  - weekday evenings: indicator recomputation
  compaction  - Saturday mornings: segment compaction

Example:
  go run ./cmd/freedom scheduler start
  go run ./cmd/freedom scheduler list
  go run ./cmd/freedom scheduler run daily_sync`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listSchedulerJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== freedom Scheduler ===")

	sched, cleanup, err := initScheduler()
	if err != nil {
		return err
	}
	defer cleanup()

	sched.Start()

	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.Jobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listSchedulerJobs(cmd *cobra.Command, args []string) error {
	sched, cleanup, err := initScheduler()
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println("Registered jobs:")
	for _, name := range sched.Jobs() {
		fmt.Printf("  - %s\n", name)
	}
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	sched, cleanup, err := initScheduler()
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Running job: %s\n", args[0])
	if err := sched.RunJob(args[0]); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	// RunJob is fire-and-forget; poll the history so a one-shot CLI
	// invocation reports the outcome before exiting.
	for {
		time.Sleep(200 * time.Millisecond)
		history, err := sched.History(args[0])
		if err != nil {
			return err
		}
		if latest := history.Latest(); latest != nil {
			if !latest.Success {
				return fmt.Errorf("job %s failed: %s", args[0], latest.Error)
			}
			fmt.Printf("Job %s completed in %s\n", args[0], latest.Duration)
			return nil
		}
	}
}

func initScheduler() (*scheduler.Scheduler, func(), error) {
	rt, err := initRuntime()
	if err != nil {
		return nil, nil, err
	}

	db, cat, err := rt.openCatalog()
	if err != nil {
		return nil, nil, err
	}

	svc := rt.newIngest(cat)

	sched := scheduler.New(rt.log)
	if err := sched.AddJob(jobs.NewDailySyncJob(svc, cat, rt.log)); err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := sched.AddJob(jobs.NewIndicatorJob(svc, cat, rt.log)); err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := sched.AddJob(jobs.NewCompactionJob(rt.store, rt.log)); err != nil {
		db.Close()
		return nil, nil, err
	}

	return sched, func() { db.Close() }, nil
}
