/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/db"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/scheduling"
)

const cliActor = "cli"

var (
	genStart           string
	genEnd             string
	genDailyStart      string
	genDailyEnd        string
	genCapacity        int
	genExcludeWeekends bool
	genNotes           string

	exportStart  string
	exportEnd    string
	exportFormat string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		database, err := db.Connect(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer func() { _ = db.Close(database) }()

		if err := db.Migrate(database); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Str("backend", string(cfg.DBBackend)).Msg("migrations applied")
		return nil
	},
}

var generateWindowsCmd = &cobra.Command{
	Use:   "generate-windows",
	Short: "Create capacity windows for a date range",
	Long: `Create one capacity window per eligible day in a date range.

Days that already carry the identical window are skipped, so the command
can be re-run safely.

Examples:
  # Weekday windows for March, 06:00 to 14:00 plant time, 480 minutes each
  kfshscheduler generate-windows --start 2026-03-01 --end 2026-03-31 \
    --daily-start 06:00 --daily-end 14:00 --capacity 480 --exclude-weekends
`,
	RunE: runGenerateWindows,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue tentative reservations once",
	RunE:  runSweep,
}

var exportCmd = &cobra.Command{
	Use:   "export-calendar",
	Short: "Render the capacity calendar and store it",
	RunE:  runExport,
}

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Report ledger inconsistencies between windows and reservations",
	RunE:  runIntegrity,
}

var deliverCmd = &cobra.Command{
	Use:   "deliver-outbox",
	Short: "Push pending order-creation requests once",
	RunE:  runDeliver,
}

func init() {
	generateWindowsCmd.Flags().StringVar(&genStart, "start", "", "First date (YYYY-MM-DD)")
	generateWindowsCmd.Flags().StringVar(&genEnd, "end", "", "Last date (YYYY-MM-DD)")
	generateWindowsCmd.Flags().StringVar(&genDailyStart, "daily-start", "06:00", "Window start time (HH:MM, plant time)")
	generateWindowsCmd.Flags().StringVar(&genDailyEnd, "daily-end", "14:00", "Window end time (HH:MM, plant time)")
	generateWindowsCmd.Flags().IntVar(&genCapacity, "capacity", 0, "Capacity in minutes per window (defaults to the window length)")
	generateWindowsCmd.Flags().BoolVar(&genExcludeWeekends, "exclude-weekends", false, "Skip the plant's weekend days")
	generateWindowsCmd.Flags().StringVar(&genNotes, "notes", "", "Notes stored on each window")
	_ = generateWindowsCmd.MarkFlagRequired("start")
	_ = generateWindowsCmd.MarkFlagRequired("end")

	exportCmd.Flags().StringVar(&exportStart, "start", "", "First date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "Last date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv or json")
	_ = exportCmd.MarkFlagRequired("start")
	_ = exportCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(migrateCmd, generateWindowsCmd, sweepCmd, exportCmd, integrityCmd, deliverCmd)
}

func runGenerateWindows(cmd *cobra.Command, args []string) error {
	srv, err := openServices()
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	res, err := srv.Service().GenerateWindows(cmdContext(cmd), scheduling.GenerateRequest{
		StartDate:       genStart,
		EndDate:         genEnd,
		DailyStartTime:  genDailyStart,
		DailyEndTime:    genDailyEnd,
		CapacityMinutes: genCapacity,
		ExcludeWeekends: genExcludeWeekends,
		Notes:           genNotes,
	}, cliActor)
	if err != nil {
		return describe(err)
	}

	logger.Info().
		Int("created", len(res.Created)).
		Int("duplicates", res.Duplicates).
		Strs("overlaps", res.Overlaps).
		Msg("windows generated")
	return printJSON(cmd.OutOrStdout(), res)
}

func runSweep(cmd *cobra.Command, args []string) error {
	srv, err := openServices()
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	res, err := srv.Service().ExpireDue(cmdContext(cmd))
	if err != nil {
		return describe(err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runExport(cmd *cobra.Command, args []string) error {
	srv, err := openServices()
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	res, err := srv.Service().ExportCalendar(cmdContext(cmd), exportStart, exportEnd, exportFormat, cliActor)
	if err != nil {
		return describe(err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runIntegrity(cmd *cobra.Command, args []string) error {
	srv, err := openServices()
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	report, err := srv.Service().CheckIntegrity(cmdContext(cmd))
	if err != nil {
		return describe(err)
	}
	if err := printJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Total > 0 {
		return fmt.Errorf("%d integrity finding(s)", report.Total)
	}
	return nil
}

func runDeliver(cmd *cobra.Command, args []string) error {
	srv, err := openServices()
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	d := srv.Deliverer()
	if d == nil {
		return fmt.Errorf("no order-creation sink configured (set KFSH_ORDER_WEBHOOK_URL or KFSH_NATS_URL)")
	}
	n, err := d.ProcessDue(cmdContext(cmd))
	if err != nil {
		return err
	}
	logger.Info().Int("delivered", n).Msg("outbox drained")
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// describe flattens validation violations into the error text.
func describe(err error) error {
	pub := scheduling.Public(err)
	if pub.Code == scheduling.CodeInternal {
		return err
	}
	msg := pub.Error()
	for _, v := range pub.Violations {
		msg += fmt.Sprintf("\n  %s: %s", v.Field, v.Message)
	}
	return errors.New(msg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
