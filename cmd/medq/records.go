package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/medq/medq/pkg/intakeflow"
	"github.com/medq/medq/pkg/models"
)

func patientsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Browse submitted patients",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			skip, _ := cmd.Flags().GetInt("skip")
			limit, _ := cmd.Flags().GetInt("limit")
			items, err := a.client.Patients.List(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tAGE\tGENDER\tSYMPTOMS\tCREATED")
			for _, p := range items {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					p.ID, p.Name, p.Age, p.Gender, truncate(p.Symptoms, 40), p.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().Int("skip", 0, "Records to skip")
	listCmd.Flags().Int("limit", 0, "Maximum records (server default when 0)")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.client.Patients.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printPatient(cmd.OutOrStdout(), p)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "summary <id>",
		Short: "Show the latest medical summary for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ms, err := a.client.Patients.Summary(cmd.Context(), id)
			if err != nil {
				return err
			}
			return intakeflow.NewSummaryView(ms).Render(cmd.OutOrStdout())
		},
	})

	return cmd
}

func exportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download reports",
	}
	pdfCmd := &cobra.Command{
		Use:   "pdf <patient-id>",
		Short: "Download a patient's PDF summary report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = fmt.Sprintf("patient_%s_summary.pdf", id)
			}
			return writeFile(output, cmd.OutOrStdout(), func(w io.Writer) (int64, error) {
				return a.client.Patients.ExportPDF(cmd.Context(), id, w)
			})
		},
	}
	pdfCmd.Flags().StringP("output", "o", "", "Output file")
	cmd.AddCommand(pdfCmd)
	return cmd
}

func analyticsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Practice statistics",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dashboard",
		Short: "Show dashboard statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.client.Analytics.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			printDashboard(cmd.OutOrStdout(), stats)
			return nil
		},
	})

	exportCSV := &cobra.Command{
		Use:   "export",
		Short: "Export patients as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = "medq_analytics_" + time.Now().Format("20060102") + ".csv"
			}
			return writeFile(output, cmd.OutOrStdout(), func(w io.Writer) (int64, error) {
				return a.client.Analytics.ExportCSV(cmd.Context(), start, end, w)
			})
		},
	}
	exportCSV.Flags().String("start", "", "Start date (YYYY-MM-DD)")
	exportCSV.Flags().String("end", "", "End date (YYYY-MM-DD, inclusive)")
	exportCSV.Flags().StringP("output", "o", "", "Output file")
	cmd.AddCommand(exportCSV)

	trendsCmd := &cobra.Command{
		Use:   "trends",
		Short: "Daily counts of tracked symptoms",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			trends, err := a.client.Analytics.SymptomTrends(cmd.Context(), days)
			if err != nil {
				return err
			}
			printTrends(cmd.OutOrStdout(), trends)
			return nil
		},
	}
	trendsCmd.Flags().Int("days", 30, "Days to look back")
	cmd.AddCommand(trendsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print new intakes as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Waiting for new intakes (Ctrl+C to stop)...")
			return a.client.Analytics.Watch(cmd.Context(), func(evt models.IntakeEvent) {
				fmt.Fprintf(out, "%s  %s  %s\n", evt.At.Local().Format("15:04:05"), evt.PatientID, evt.Name)
			})
		},
	})

	return cmd
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid patient id %q", s)
	}
	return id, nil
}

// writeFile streams a download into path, removing the file on failure.
func writeFile(path string, out io.Writer, fetch func(io.Writer) (int64, error)) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := fetch(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	fmt.Fprintf(out, "Saved %s (%d bytes)\n", path, n)
	return nil
}

func printPatient(out io.Writer, p *models.Patient) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	fmt.Fprintf(tw, "Age:\t%d\n", p.Age)
	fmt.Fprintf(tw, "Gender:\t%s\n", p.Gender)
	fmt.Fprintf(tw, "Symptoms:\t%s\n", p.Symptoms)
	fmt.Fprintf(tw, "Duration:\t%s\n", p.Duration)
	fmt.Fprintf(tw, "Medications:\t%s\n", orNone(p.Medications))
	fmt.Fprintf(tw, "Allergies:\t%s\n", orNone(p.Allergies))
	fmt.Fprintf(tw, "Submitted:\t%s\n", p.CreatedAt.Local().Format("2006-01-02 15:04"))
	_ = tw.Flush()
}

func printDashboard(out io.Writer, s *models.DashboardStats) {
	fmt.Fprintf(out, "Total patients:   %d\n", s.TotalPatients)
	fmt.Fprintf(out, "Today:            %d\n", s.TodayPatients)
	fmt.Fprintf(out, "Avg consultation: %.1f min\n", s.AvgConsultationTime)
	if len(s.TopSymptoms) > 0 {
		fmt.Fprintln(out, "\nTop symptoms:")
		for _, sc := range s.TopSymptoms {
			fmt.Fprintf(out, "  %-20s %d\n", sc.Symptom, sc.Count)
		}
	}
	fmt.Fprintln(out, "\nLast 7 days:")
	for _, d := range s.PatientsByDate {
		fmt.Fprintf(out, "  %s  %d\n", d.Date, d.Count)
	}
}

func printTrends(out io.Writer, trends models.SymptomTrends) {
	dates := make([]string, 0, len(trends))
	for d := range trends {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		counts := trends[d]
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(out, "%s:", d)
		for _, name := range names {
			fmt.Fprintf(out, " %s=%d", name, counts[name])
		}
		fmt.Fprintln(out)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orNone(s *string) string {
	if s == nil || *s == "" {
		return "None"
	}
	return *s
}
