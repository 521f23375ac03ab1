package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// AlertArgs is the operator-alert job enqueued alongside every review entry.
type AlertArgs struct {
	EntryID  uuid.UUID `json:"entry_id"`
	EventID  string    `json:"event_id"`
	Category string    `json:"category"`
	Detail   string    `json:"detail"`
}

func (AlertArgs) Kind() string { return "review_alert" }

// AlertWorker delivers review alerts to the ops webhook. With no URL
// configured it only logs, which still leaves the durable review entry as
// the source of truth.
type AlertWorker struct {
	river.WorkerDefaults[AlertArgs]
	webhookURL string
	httpClient *http.Client
	log        *slog.Logger
}

func NewAlertWorker(webhookURL string, log *slog.Logger) *AlertWorker {
	if log == nil {
		log = slog.Default()
	}
	return &AlertWorker{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

func (w *AlertWorker) Work(ctx context.Context, job *river.Job[AlertArgs]) error {
	args := job.Args
	if w.webhookURL == "" {
		w.log.Error("manual review required",
			"entry_id", args.EntryID, "event_id", args.EventID,
			"category", args.Category, "detail", args.Detail)
		return nil
	}

	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert for entry %s: %w", args.EntryID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d for entry %s", resp.StatusCode, args.EntryID)
	}
	w.log.Info("review alert delivered", "entry_id", args.EntryID, "event_id", args.EventID)
	return nil
}
