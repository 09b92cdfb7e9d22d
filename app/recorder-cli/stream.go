package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoockh/scribe/internal/capture"
	"github.com/yoockh/scribe/internal/client"
	"github.com/yoockh/scribe/internal/logger"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/realtime"
	"github.com/yoockh/scribe/internal/recorder"
)

var StreamCmd = &cobra.Command{
	Use:   "stream [audio file]",
	Short: "Record a session from an audio file",
	Long:  `This command joins the session, streams the audio file as if it were being captured live, and stops the session on interrupt or when the file ends. It waits for the server's summary before exiting.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runStream,
}

func init() {
	StreamCmd.Flags().String("server", "ws://localhost:8080/ws/session", "session channel URL")
	StreamCmd.Flags().String("token", os.Getenv("SCRIBE_TOKEN"), "bearer token (defaults to $SCRIBE_TOKEN)")
	StreamCmd.Flags().String("user", "", "user id, must match the token subject")
	StreamCmd.Flags().Bool("tab", false, "treat the file as tab audio instead of the microphone")
	StreamCmd.Flags().Duration("timeslice", recorder.DefaultTimeslice, "length of each streamed chunk")
	StreamCmd.Flags().Int("chunk-bytes", capture.DefaultChunkSize, "bytes read per time slice")
	StreamCmd.Flags().String("mime", models.DefaultMimeType, "audio mime type")
	StreamCmd.Flags().String("log-level", "warn", "log level")
	_ = StreamCmd.MarkFlagRequired("user")
}

func runStream(cmd *cobra.Command, args []string) error {
	sessionID, _ := cmd.Flags().GetString("session")
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	userID, _ := cmd.Flags().GetString("user")
	tab, _ := cmd.Flags().GetBool("tab")
	timeslice, _ := cmd.Flags().GetDuration("timeslice")
	chunkBytes, _ := cmd.Flags().GetInt("chunk-bytes")
	mime, _ := cmd.Flags().GetString("mime")
	level, _ := cmd.Flags().GetString("log-level")

	log := logger.New(level)
	out := cmd.OutOrStdout()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ended := make(chan struct{}, 1)
	acq := &capture.FileAcquirer{
		ChunkSize: chunkBytes,
		OnEnd:     func() { ended <- struct{}{} },
	}
	if tab {
		acq.TabPath = args[0]
	} else {
		acq.MicrophonePath = args[0]
	}

	joined := make(chan struct{}, 1)
	finished := make(chan realtime.Envelope, 1)

	var rec *recorder.Recorder
	ch, err := client.Dial(context.Background(), client.Options{
		URL:   server,
		Token: token,
		Log:   log,
		OnEvent: func(env realtime.Envelope) {
			rec.HandleEvent(env)
			switch env.Event {
			case realtime.EventJoined:
				select {
				case joined <- struct{}{}:
				default:
				}
			case realtime.EventCompleted, realtime.EventJoinError:
				select {
				case finished <- env:
				default:
				}
			}
		},
		OnDisconnect: func(err error) {
			if rec != nil {
				rec.Disconnected(err)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer ch.Close()

	printed := 0
	rec = recorder.New(recorder.Config{
		SessionID: sessionID,
		UserID:    userID,
		Timeslice: timeslice,
		MimeType:  mime,
		Acquirer:  acq,
		Channel:   ch,
		Store:     store,
		Log:       log,
		OnChange: func(s recorder.Snapshot) {
			for ; printed < len(s.Transcript) && s.Status != models.StatusCompleted; printed++ {
				fmt.Fprintln(out, s.Transcript[printed])
			}
		},
	})

	if err := rec.Connected(); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	select {
	case <-joined:
	case env := <-finished:
		return fmt.Errorf("join rejected: %s", errorMessage(env))
	case <-time.After(10 * time.Second):
		return errors.New("timed out waiting for the server to confirm the session")
	case <-ctx.Done():
		return ctx.Err()
	}

	switch rec.Snapshot().Status {
	case models.StatusProcessing:
		return errors.New("session is being finalized, try again once it completes")
	case models.StatusRecording, models.StatusPaused:
		// no capture survives a restart; begin a fresh one locally
		rec.Reset()
	}

	if err := start(ctx, rec, tab); err != nil {
		return err
	}
	fmt.Fprintln(out, "recording, press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case <-ended:
	case <-ch.Done():
		return errors.New("lost connection to server")
	}

	if err := rec.Stop(context.Background()); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	fmt.Fprintln(out, "processing...")

	for {
		select {
		case env := <-finished:
			if env.Event != realtime.EventCompleted {
				return fmt.Errorf("session failed: %s", errorMessage(env))
			}
			s := rec.Snapshot()
			fmt.Fprintf(out, "\nSummary:\n%s\n\nTranscript:\n%s\n", s.Summary, strings.Join(s.Transcript, "\n"))
			return nil
		case <-ch.Done():
			return errors.New("lost connection to server before the summary arrived")
		case <-time.After(time.Second):
			if msg := rec.Snapshot().Error; msg == "summarization failed" {
				return errors.New(msg)
			}
		}
	}
}

func start(ctx context.Context, rec *recorder.Recorder, tab bool) error {
	if tab {
		return rec.StartTab(ctx)
	}
	return rec.StartMicrophone(ctx)
}

func errorMessage(env realtime.Envelope) string {
	return strings.TrimSpace(string(env.Data))
}
