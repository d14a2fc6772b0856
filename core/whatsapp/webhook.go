package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/glowdesk/bookingbot/core/logger"
	"log/slog"
)

// webhookPayload mirrors the Cloud API webhook envelope, trimmed to the
// message fields this bot consumes.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From       string
	ID         string
	Text       string
	SequenceID int64
}

// Run serves the webhook intake until ctx is done.
func (a *Adapter) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/whatsapp", a.webhookHandler)

	srv := &http.Server{
		Addr:              a.cfg.WhatsApp.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WA.Info("webhook listening",
			slog.String("event", "mode"),
			slog.String("listen", srv.Addr),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// webhookHandler accepts both the Cloud API subscription handshake (GET) and
// message notifications (POST).
func (a *Adapter) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Subscription handshake: echo hub.challenge back.
		if r.URL.Query().Get("hub.mode") == "subscribe" {
			_, _ = w.Write([]byte(r.URL.Query().Get("hub.challenge")))
			return
		}
		w.WriteHeader(http.StatusOK)

	case http.MethodPost:
		var payload webhookPayload
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&payload); err != nil {
			logger.WA.Warn("webhook decode failed",
				slog.String("event", "webhook.decode"),
				slog.String("err", err.Error()),
			)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Acknowledge before processing; Meta retries on slow responses.
		w.WriteHeader(http.StatusOK)

		for _, msg := range flattenMessages(payload) {
			go a.handleInbound(context.Background(), msg)
		}

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func flattenMessages(payload webhookPayload) []inboundMessage {
	var out []inboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil || msg.From == "" {
					continue
				}
				seq, _ := strconv.ParseInt(msg.Timestamp, 10, 64)
				out = append(out, inboundMessage{
					From:       msg.From,
					ID:         msg.ID,
					Text:       msg.Text.Body,
					SequenceID: seq,
				})
			}
		}
	}
	return out
}
