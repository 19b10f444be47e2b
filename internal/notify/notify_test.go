package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/propchat/internal/notify"
	"github.com/kiranshivaraju/propchat/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu    sync.Mutex
	delay time.Duration
	err   error
	sent  []models.Email
}

func (c *captureSender) Send(ctx context.Context, e models.Email) error {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, e)
	return nil
}

func (c *captureSender) Sent() []models.Email {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Email(nil), c.sent...)
}

var tenant = &models.Tenant{ID: "agent-a.com", Name: "Agent A Realty", AgentName: "Sari", AgentEmail: "sari@agent-a.com"}

var listing = &models.Property{ID: "P-7", Title: "Rumah Kemang", Location: "Kemang, Jakarta Selatan", Price: "Rp. 4,5 Milyar", URL: "https://agent-a.com/p/7"}

var visitor = models.Visitor{
	Name:          "Budi <script>",
	Email:         "budi@example.com",
	Phone:         "0812 3456 7890",
	PropertyID:    "P-7",
	PreferredDate: "2026-10-19",
	PreferredTime: "10:00",
	Message:       "Bisa lihat garasi?",
}

func TestDispatcher_SendsInBackgroundAndWaits(t *testing.T) {
	sender := &captureSender{delay: 20 * time.Millisecond}
	d := notify.NewDispatcher(sender, nil)

	d.Dispatch(notify.KindAgentLead, models.Email{To: "a@agent-a.com"})
	d.Dispatch(notify.KindVisitorConfirmation, models.Email{To: "b@example.com"})
	assert.Empty(t, sender.Sent(), "dispatch does not block on delivery")

	require.NoError(t, d.Wait(context.Background()))
	assert.Len(t, sender.Sent(), 2)
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	d := notify.NewDispatcher(&captureSender{err: errors.New("relay down")}, nil)

	d.Dispatch(notify.KindAgentNotification, models.Email{To: "a@agent-a.com"})
	assert.NoError(t, d.Wait(context.Background()))
}

func TestDispatcher_WaitHonorsContext(t *testing.T) {
	d := notify.NewDispatcher(&captureSender{delay: time.Second}, nil)
	d.Dispatch(notify.KindAgentLead, models.Email{To: "a@agent-a.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)
}

func TestVisitorConfirmation_Localized(t *testing.T) {
	id := notify.VisitorConfirmation(tenant, visitor, listing, "id")
	assert.Equal(t, "budi@example.com", id.To)
	assert.Equal(t, "Permintaan survei: Rumah Kemang", id.Subject)
	assert.Contains(t, id.Text, "Tanggal: 2026-10-19")
	assert.Contains(t, id.Text, "Harga: Rp. 4,5 Milyar")
	assert.Contains(t, id.Text, "Salam, Sari")

	en := notify.VisitorConfirmation(tenant, visitor, nil, "en")
	assert.Equal(t, "Viewing request: P-7", en.Subject)
	assert.Contains(t, en.Text, "Time: 10:00")
	assert.NotContains(t, en.Text, "Price:", "empty property fields are omitted")
}

func TestAgentLead_EscapesHTML(t *testing.T) {
	e := notify.AgentLead(tenant, visitor, listing)
	assert.Equal(t, "sari@agent-a.com", e.To)
	assert.Equal(t, "New viewing request from Budi <script>", e.Subject)
	assert.Contains(t, e.Text, "Name: Budi <script>")
	assert.Contains(t, e.Text, "Bisa lihat garasi?")
	assert.Contains(t, e.HTML, "Budi &lt;script&gt;")
	assert.NotContains(t, e.HTML, "<script>")
}

func TestAgentNotificationAndInquirySummary(t *testing.T) {
	n := notify.AgentNotification(tenant, visitor)
	assert.Equal(t, "New lead: Budi <script>", n.Subject)
	assert.Contains(t, n.Text, "Phone: 0812 3456 7890")

	s := notify.InquirySummary(tenant, visitor, "Asks about houses in Kemang under 5 M", "user: rumah di kemang\nmodel: Ada 1 rumah.")
	assert.Equal(t, "sari@agent-a.com", s.To)
	assert.Contains(t, s.Text, "Asks about houses in Kemang under 5 M")
	assert.Contains(t, s.Text, "model: Ada 1 rumah.")
	assert.Contains(t, s.HTML, "Sent by the agent-a.com property assistant.")
}
