package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medq/medq/pkg/intakeflow"
)

const conversationHelp = "Type your answers. `/voice <file>` sends a recording, `/quit` leaves."

func intakeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "intake",
		Short: "Run a guided patient intake",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.converse(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), intakeflow.ModeIntake)
		},
	}
}

func chatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask the medical assistant a question",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.converse(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), intakeflow.ModeMedicalChat)
		},
	}
}

// recordingPath is an AudioSource whose file is chosen per /voice command.
type recordingPath struct {
	path string
}

func (r *recordingPath) Record(ctx context.Context) (string, io.ReadCloser, error) {
	return intakeflow.FileAudio{Path: r.path}.Record(ctx)
}

func (a *app) converse(ctx context.Context, in io.Reader, out io.Writer, mode intakeflow.Mode) error {
	audio := &recordingPath{}
	ctrl := intakeflow.NewController(intakeflow.Config{
		Intake:     a.client.Intake,
		Patients:   a.client.Patients,
		Recognizer: intakeflow.NewServerRecognizer(audio, a.client.Intake),
		Mode:       mode,
		Logger:     a.logger,
	})

	for _, m := range ctrl.Transcript() {
		printMessage(out, m)
	}
	fmt.Fprintln(out, conversationHelp)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())

		var (
			reply intakeflow.ChatMessage
			err   error
		)
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/voice"):
			audio.path = strings.TrimSpace(strings.TrimPrefix(line, "/voice"))
			reply, err = ctrl.SubmitVoice(ctx)
		default:
			reply, err = ctrl.SubmitText(ctx, line)
		}
		if reply.Text != "" {
			printMessage(out, reply)
		}
		if err != nil {
			a.logger.Debug().Err(err).Msg("turn failed")
		}

		if ctrl.SummaryReady() {
			done, err := a.finishIntake(ctx, sc, out, ctrl)
			if err != nil || done {
				return err
			}
		}
	}
}

// finishIntake generates the summary, shows it and offers submission.
// It reports done once the patient has been submitted.
func (a *app) finishIntake(ctx context.Context, sc *bufio.Scanner, out io.Writer, ctrl *intakeflow.Controller) (bool, error) {
	fmt.Fprintln(out, "Generating your summary...")
	ms, err := ctrl.GenerateSummary(ctx)
	if err != nil {
		fmt.Fprintf(out, "Could not generate the summary: %v\n", err)
		return false, nil
	}
	fmt.Fprintln(out)
	if err := intakeflow.NewSummaryView(ms).Render(out); err != nil {
		return false, err
	}

	for {
		fmt.Fprint(out, "\nSubmit this information to the doctor? [y/N] ")
		if !sc.Scan() {
			return true, sc.Err()
		}
		if !strings.EqualFold(strings.TrimSpace(sc.Text()), "y") {
			fmt.Fprintln(out, "Not submitted.")
			return true, nil
		}
		p, err := ctrl.Submit(ctx)
		var inc *intakeflow.IncompleteError
		switch {
		case errors.As(err, &inc):
			fmt.Fprintf(out, "Some details are still missing: %s\n", strings.Join(inc.Missing, ", "))
			return true, nil
		case err != nil:
			fmt.Fprintf(out, "Submission failed: %v\n", err)
			continue
		}
		tr := ctrl.Transcript()
		printMessage(out, tr[len(tr)-1])
		fmt.Fprintf(out, "Reference: %s\n", p.ID)
		return true, nil
	}
}

func printMessage(out io.Writer, m intakeflow.ChatMessage) {
	who := "You"
	if m.Sender == intakeflow.SenderBot {
		who = "MedQ"
	}
	if m.Emergency {
		who += " [EMERGENCY]"
	}
	fmt.Fprintf(out, "%s: %s\n", who, m.Text)
}
