package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"chartindex/export"
	"chartindex/extract"
	"chartindex/index"
	"chartindex/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "chartindex",
		Short:         "Index MIMIC-IV hospital tables and extract per-admission views",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("data-dir", "", "MIMIC-IV root directory (contains hosp/)")
	flags.String("source", "", "table source: csv, parquet or postgres")
	flags.String("database-url", "", "Postgres connection string for --source=postgres")
	flags.String("pg-schema", "", "Postgres schema holding the hosp tables")
	flags.Int("max-patients", 0, "index only the first N patients")
	flags.Int("chunk-size", 0, "rows per read chunk")
	flags.Bool("parallel", false, "load tables concurrently")
	flags.String("subjects", "", "file of subject ids to index (JSON array or one per line)")
	flags.String("admissions", "", "file of hadm ids to index (JSON array or one per line)")
	flags.StringSlice("admission-type", nil, "keep admissions of this type (repeatable)")
	flags.String("diagnosis", "", "keep admissions with an ICD code matching this pattern")
	flags.String("admitted-from", "", "keep admissions admitted on or after this date")
	flags.String("admitted-to", "", "keep admissions admitted on or before this date")
	flags.String("log-level", "", "log level")
	flags.String("log-format", "", "log format: json or console")

	rootCmd.AddCommand(patientsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(labsCmd())
	rootCmd.AddCommand(medsCmd())
	rootCmd.AddCommand(cohortCmd())
	rootCmd.AddCommand(warningsCmd())
	return rootCmd
}

// withIndex loads the configuration, builds the index and hands it to fn.
func withIndex(cmd *cobra.Command, fn func(idx *index.Index) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := cfg.OpenSource(ctx)
	if err != nil {
		logger.Error().Err(err).Str("source", cfg.Source).Msg("failed to open source")
		return err
	}
	defer closeSrc()

	opts, err := cfg.IndexOptions(&logger)
	if err != nil {
		return err
	}
	idx, err := index.Build(ctx, src, opts)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build index")
		return err
	}
	return fn(idx)
}

func parseID(arg, kind string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", kind, arg)
	}
	return id, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	return export.WriteJSON(cmd.OutOrStdout(), v)
}

func patientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List indexed patients with their admissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, func(idx *index.Index) error {
				docs := make([]*export.PatientDocument, 0, idx.Len())
				for _, id := range idx.SubjectIDs() {
					doc, err := export.Patient(idx, id)
					if err != nil {
						return err
					}
					docs = append(docs, doc)
				}
				return writeJSON(cmd, docs)
			})
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export JSON documents for a patient or an admission",
	}
	cmd.AddCommand(exportPatientCmd())
	cmd.AddCommand(exportAdmissionCmd())
	return cmd
}

func exportPatientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patient <subject_id>",
		Short: "Export the demographics and admissions of a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "subject id")
			if err != nil {
				return err
			}
			return withIndex(cmd, func(idx *index.Index) error {
				doc, err := export.Patient(idx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd, doc)
			})
		},
	}
}

func exportAdmissionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "admission <hadm_id>",
		Short: "Export the timeline, labs and discharge medications of an admission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "hadm id")
			if err != nil {
				return err
			}
			return withIndex(cmd, func(idx *index.Index) error {
				doc, err := export.Admission(idx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd, doc)
			})
		},
	}
}

func timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <hadm_id>",
		Short: "Show the chronological timeline of an admission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "hadm id")
			if err != nil {
				return err
			}
			return withIndex(cmd, func(idx *index.Index) error {
				tl, err := extract.BuildTimeline(idx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd, struct {
					HadmID  int64                  `json:"hadm_id"`
					Events  []export.TimelineEvent `json:"timeline"`
					Skipped []export.Warning       `json:"skipped"`
				}{id, export.TimelineEvents(tl), export.Warnings(tl.Skipped)})
			})
		},
	}
}

func labsCmd() *cobra.Command {
	var includeNormal, flaggedOnly bool
	cmd := &cobra.Command{
		Use:   "labs <hadm_id>",
		Short: "Summarize the lab results of an admission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "hadm id")
			if err != nil {
				return err
			}
			return withIndex(cmd, func(idx *index.Index) error {
				s, err := extract.SummarizeLabs(idx, id, includeNormal)
				if err != nil {
					return err
				}
				if flaggedOnly {
					return writeJSON(cmd, export.LabResults(s.Flagged))
				}
				return writeJSON(cmd, struct {
					HadmID   int64              `json:"hadm_id"`
					Positive []export.LabResult `json:"positive"`
					Negative []export.LabResult `json:"negative"`
				}{id, export.LabResults(s.Positive), export.LabResults(s.Negative)})
			})
		},
	}
	cmd.Flags().BoolVar(&includeNormal, "include-normal", false, "count normal results as negative")
	cmd.Flags().BoolVar(&flaggedOnly, "flagged", false, "print only flagged results")
	return cmd
}

func medsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meds <hadm_id>",
		Short: "List medications active at discharge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "hadm id")
			if err != nil {
				return err
			}
			return withIndex(cmd, func(idx *index.Index) error {
				meds, err := extract.DischargeMedications(idx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd, export.Medications(meds))
			})
		},
	}
}

func cohortCmd() *cobra.Command {
	var (
		limit     int
		exactCode bool
	)
	cmd := &cobra.Command{
		Use:   "cohort <concern>",
		Short: "Find patients with a diagnosis matching the concern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, func(idx *index.Index) error {
				matches := extract.FindPatients(idx, args[0], limit, !exactCode)
				docs := make([]*export.PatientDocument, 0, len(matches))
				for _, p := range matches {
					doc, err := export.Patient(idx, p.SubjectID)
					if err != nil {
						return err
					}
					docs = append(docs, doc)
				}
				return writeJSON(cmd, docs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "max", 10, "maximum patients to return")
	cmd.Flags().BoolVar(&exactCode, "code", false, "match the ICD code exactly instead of searching descriptions")
	return cmd
}

func warningsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warnings",
		Short: "List data quality warnings raised while indexing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, func(idx *index.Index) error {
				return writeJSON(cmd, export.Warnings(idx.Warnings()))
			})
		},
	}
}
