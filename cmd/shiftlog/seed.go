package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/jdcarver/shiftlog/internal/config"
	"github.com/jdcarver/shiftlog/internal/shift"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo shifts and jobs for a development user",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func intPtr(n int) *int { return &n }

func genderPtr(g shift.Gender) *shift.Gender { return &g }

// jobAdder is the slice of the store the job seeding needs.
type jobAdder interface {
	AddJob(ctx context.Context, userID string, nj *shift.NewJob) (bool, error)
}

func seedJobs(ctx context.Context, store jobAdder, userID string, jobs []shift.NewJob) error {
	for _, nj := range jobs {
		ok, err := store.AddJob(ctx, userID, &nj)
		if err != nil {
			return fmt.Errorf("creating job on shift %s: %w", nj.Shift, err)
		}
		if !ok {
			return fmt.Errorf("creating job on shift %s: shift is missing or deleted", nj.Shift)
		}
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	userID := os.Getenv("SHIFTLOG_SEED_USER")
	if userID == "" {
		userID = "dev|seed-user"
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := shift.NewStore(pool)

	// Check if seed has already run.
	existing, err := store.GetAllShifts(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking existing shifts: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("demo data already exists, skipping seed")
		return nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)

	demoShifts := []shift.NewShift{
		{
			Date:     today.AddDate(0, 0, -21),
			Duration: shift.FromHours(10),
			Event:    "Football stadium cover",
			Location: "City ground, east concourse",
			Role:     shift.RoleEAC,
			CrewMate: "Alex",
		},
		{
			Date:     today.AddDate(0, 0, -14),
			Duration: shift.FromHours(8.5),
			Event:    "Half marathon",
			Location: "Finish line treatment centre",
			Role:     shift.RoleCRU,
			CrewMate: "Sam",
		},
		{
			Date:     today.AddDate(0, 0, -7),
			Duration: shift.FromHours(6),
			Event:    "County show first aid post",
			Role:     shift.RoleAFA,
		},
		{
			Date:     today.AddDate(0, 0, -2),
			Duration: shift.FromHours(12),
			Event:    "Night-time economy patrol",
			Location: "High street",
			Role:     shift.RoleEAC,
			CrewMate: "Jordan",
		},
	}

	var shiftIDs []string
	for _, ns := range demoShifts {
		id, err := store.AddShift(ctx, userID, &ns)
		if err != nil {
			return fmt.Errorf("creating shift %q: %w", ns.Event, err)
		}
		slog.Info("created shift", "event", ns.Event, "id", id)
		shiftIDs = append(shiftIDs, id)
	}

	demoJobs := []shift.NewJob{
		{
			Age:      intPtr(34),
			Category: 3,
			Gender:   genderPtr(shift.GenderMale),
			Notes:    "Lower leg injury on the concourse steps, handed over to ambulance crew.",
			Outcome:  shift.OutcomeConveyed,
			Shift:    shiftIDs[0],
		},
		{
			Age:      intPtr(27),
			Category: 5,
			Gender:   genderPtr(shift.GenderFemale),
			Notes:    "Runner with exhaustion at the finish, recovered after rest and fluids.",
			Outcome:  shift.OutcomeDischargedOnScene,
			Shift:    shiftIDs[1],
		},
		{
			Category:       2,
			BlueLights:     true,
			Drove:          true,
			Notes:          "Stood down en route by control.",
			Outcome:        shift.OutcomeStoodDown,
			ReflectionFlag: true,
			Shift:          shiftIDs[3],
		},
	}

	if err := seedJobs(ctx, store, userID, demoJobs); err != nil {
		return err
	}

	slog.Info("created demo jobs", "count", len(demoJobs))
	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("User:   %s\n", userID)
	fmt.Printf("Shifts: %d\n", len(demoShifts))
	fmt.Printf("Jobs:   %d\n", len(demoJobs))
	fmt.Printf("\nTry it (with a valid bearer token for that user):\n")
	fmt.Printf("  curl -H 'Authorization: Bearer <token>' http://localhost:%d/api/RecentShifts\n", cfg.Server.Port)

	return nil
}
