package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hushlab/hushd/internal/clock"
	"github.com/hushlab/hushd/internal/config"
	"github.com/hushlab/hushd/internal/noise"
	"github.com/hushlab/hushd/internal/storage"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Inspect a user's standing interactively",
	Long:  `Inspect the manner score and session state hushd holds for a user.`,
}

var checkScoreCmd = &cobra.Command{
	Use:   "score USER_ID",
	Short: "Show a user's manner score and grade",
	Example: `  hushd -c config.yaml check score alice
  hushd check score 5f3a9c`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckScore,
}

var checkSessionCmd = &cobra.Command{
	Use:   "session USER_ID",
	Short: "Show a user's open session, if any",
	Example: `  hushd -c config.yaml check session alice`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckSession,
}

func init() {
	checkCmd.AddCommand(checkScoreCmd)
	checkCmd.AddCommand(checkSessionCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckScore(cmd *cobra.Command, args []string) error {
	userID := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	noiseService, err := noise.NewService(store, cfg.Cache.Size, clock.RealClock{}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize noise service: %w", err)
	}

	summary, err := noiseService.MannerScore(context.Background(), userID)
	if err != nil {
		return fmt.Errorf("failed to get manner score: %w", err)
	}

	printScoreResult(userID, summary)
	return nil
}

func runCheckSession(cmd *cobra.Command, args []string) error {
	userID := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	session, err := store.Sessions().LatestOpen(context.Background(), userID)
	if err == storage.ErrNotFound {
		printNoOpenSession(userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up session: %w", err)
	}

	printSessionResult(userID, session)
	return nil
}

// printScoreResult prints the manner score with colors
func printScoreResult(userID string, summary *noise.ScoreSummary) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("MANNER SCORE")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("User:        %s\n", userID)
	fmt.Printf("Points:      %d / %d\n", summary.Points, noise.PointsMax)
	fmt.Printf("Session avg: %.1f dB\n", summary.AvgDecibel)
	fmt.Printf("Loud today:  %d samples\n", summary.TodayLoudCount)
	fmt.Println()

	cyan.Print("Grade:   ")
	switch summary.Grade {
	case storage.GradeSilent:
		green.Println("SILENT")
		fmt.Println("         → All zones accessible, including silent rooms")
	case storage.GradeGood:
		yellow.Println("GOOD")
		fmt.Println("         → Standard zones accessible")
	case storage.GradeWarning:
		red.Println("WARNING")
		fmt.Println("         → Restricted to general zones")
	default:
		fmt.Printf("UNKNOWN (%s)\n", summary.Grade)
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

// printSessionResult prints the open session with colors
func printSessionResult(userID string, session *storage.UsageSession) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("OPEN SESSION")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("User:      %s\n", userID)
	fmt.Printf("Session:   %s\n", session.ID)
	fmt.Printf("Check-in:  %s\n", session.CheckIn.Format("2006-01-02 15:04:05"))
	fmt.Printf("Elapsed:   %s\n", time.Since(session.CheckIn).Round(time.Minute))
	fmt.Println()

	cyan.Print("Status:    ")
	green.Println("IN_PROGRESS")

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

func printNoOpenSession(userID string) {
	yellow := color.New(color.FgYellow, color.Bold)
	fmt.Println()
	fmt.Printf("User:    %s\n", userID)
	yellow.Println("No open session")
	fmt.Println()
}
