package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Notifier posts transcript events to the feed server.
type Notifier struct {
	config     Config
	httpClient *http.Client

	// Statistics
	totalNotifications  uint64
	failedNotifications uint64

	mu sync.RWMutex
}

// Config contains feed notifier configuration
type Config struct {
	URL         string
	Timeout     time.Duration
	PersonaName string
	Language    string
}

// Event is the notification payload understood by the feed server.
type Event struct {
	EventType   string `json:"event_type"`
	Data        string `json:"data"`
	TimestampMS int64  `json:"timestamp_ms"`
	SessionID   string `json:"session_id"`
	PersonaName string `json:"persona_name,omitempty"`
	Language    string `json:"language,omitempty"`
	Channel     int    `json:"channel,omitempty"`
}

// NotifierStats represents notifier statistics
type NotifierStats struct {
	TotalNotifications  uint64  `json:"total_notifications"`
	FailedNotifications uint64  `json:"failed_notifications"`
	SuccessRate         float64 `json:"success_rate"`
}

// NewNotifier creates a feed notifier for the given endpoint.
func NewNotifier(config Config) (*Notifier, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("feed URL cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	if config.Language == "" {
		config.Language = "en"
	}

	return &Notifier{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Notify posts one transcript for the given channel. It returns true when
// the feed server accepted the event. Blank transcripts are skipped
// without contacting the server.
func (n *Notifier) Notify(ctx context.Context, transcript string, channel int, sessionID string) bool {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return false
	}

	n.incrementTotal()

	now := time.Now()
	if sessionID == "" {
		sessionID = fmt.Sprintf("scan_ch%d_%d", channel, now.Unix())
	}

	event := Event{
		EventType:   "transcript",
		Data:        transcript,
		TimestampMS: now.UnixMilli(),
		SessionID:   sessionID,
		PersonaName: n.config.PersonaName,
		Language:    n.config.Language,
	}
	if channel >= 1 && channel <= 7 {
		event.Channel = channel
	}

	body, err := json.Marshal(event)
	if err != nil {
		n.incrementFailed()
		return false
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.config.URL, bytes.NewReader(body))
	if err != nil {
		n.incrementFailed()
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.incrementFailed()
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.incrementFailed()
		return false
	}

	return true
}

func (n *Notifier) incrementTotal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.totalNotifications++
}

func (n *Notifier) incrementFailed() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failedNotifications++
}

// GetStats returns current notifier statistics
func (n *Notifier) GetStats() NotifierStats {
	n.mu.RLock()
	defer n.mu.RUnlock()

	successRate := float64(0)
	if n.totalNotifications > 0 {
		successRate = float64(n.totalNotifications-n.failedNotifications) / float64(n.totalNotifications) * 100
	}

	return NotifierStats{
		TotalNotifications:  n.totalNotifications,
		FailedNotifications: n.failedNotifications,
		SuccessRate:         successRate,
	}
}
