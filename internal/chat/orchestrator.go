// Package chat turns one inbound visitor message into a screened, tool-grounded,
// validated and sanitized reply. Each turn is an explicit walk through a small
// state machine; the visited states travel back on the Reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/propchat/internal/ai"
	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/internal/metrics"
	"github.com/kiranshivaraju/propchat/internal/notify"
	"github.com/kiranshivaraju/propchat/internal/search"
	"github.com/kiranshivaraju/propchat/internal/security"
	"github.com/kiranshivaraju/propchat/internal/usage"
	"github.com/kiranshivaraju/propchat/internal/validation"
	"github.com/kiranshivaraju/propchat/pkg/models"
	"golang.org/x/text/language"
)

// MaxMessageRunes bounds an inbound visitor message.
const MaxMessageRunes = 2000

// Roles accepted in the replayed history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// State is one step of a chat turn.
type State string

const (
	StateReceived       State = "RECEIVED"
	StateScreened       State = "SCREENED"
	StateBlocked        State = "BLOCKED"
	StateQuotaChecked   State = "QUOTA_CHECKED"
	StateQuotaExceeded  State = "QUOTA_EXCEEDED"
	StateModelInvoked   State = "MODEL_INVOKED"
	StateDirectText     State = "DIRECT_TEXT"
	StateToolCall       State = "TOOL_CALL"
	StateGuardRetry     State = "GUARD_RETRY"
	StateToolExecuted   State = "TOOL_EXECUTED"
	StateModelContinued State = "MODEL_CONTINUED"
	StateValidated      State = "VALIDATED"
	StateSanitized      State = "SANITIZED"
	StateReturned       State = "RETURNED"
)

// Turn is one prior exchange resent by the client.
type Turn struct {
	Role string
	Text string
}

// Request is one inbound chat message.
type Request struct {
	TenantID          string
	Message           string
	History           []Turn
	CurrentURL        string
	CurrentPropertyID string
}

// Reply is the outcome of a successful turn.
type Reply struct {
	Text         string
	Properties   []models.Property
	Language     string
	Model        string
	Tool         string
	Usage        models.TokenCount
	UsageWarning bool
	Warnings     []models.ValidationWarning
	Redactions   []models.Redaction
	States       []State
}

// Store is the slice of the data store a chat turn touches.
type Store interface {
	EnsureTenant(ctx context.Context, id string) (*models.Tenant, error)
	AppendAudit(ctx context.Context, rec *models.AuditRecord) error
	RecentNegativeFeedback(ctx context.Context, tenantID string, limit int) ([]*models.Feedback, error)
	CreateVisitor(ctx context.Context, v *models.Visitor) error
}

// Quota checks and records tenant token usage.
type Quota interface {
	Check(ctx context.Context, tenantID string) (usage.Status, error)
	Record(ctx context.Context, tenantID string, input, output int) error
}

// Notifier sends emails without blocking the turn.
type Notifier interface {
	Dispatch(kind notify.Kind, email models.Email)
}

// Dependencies are the collaborators of an Orchestrator.
type Dependencies struct {
	Store       Store
	Catalogs    search.CatalogResolver
	Gateway     *ai.Gateway
	Screen      *security.Screen
	Sanitizer   *security.Sanitizer
	Validator   *validation.Validator
	Engine      *search.Engine
	Coordinator *search.Coordinator
	Usage       Quota
	Notifier    Notifier
	Logger      *slog.Logger
}

// Orchestrator runs chat turns. It holds no per-conversation state and is
// safe for concurrent use.
type Orchestrator struct {
	store       Store
	catalogs    search.CatalogResolver
	gateway     *ai.Gateway
	screen      *security.Screen
	sanitizer   *security.Sanitizer
	validator   *validation.Validator
	engine      *search.Engine
	coordinator *search.Coordinator
	usage       Quota
	notifier    Notifier
	logger      *slog.Logger

	defaultLang  language.Tag
	location     *time.Location
	historyLimit int
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. cfg must already be validated.
func New(d Dependencies, cfg config.ChatConfig, opts ...Option) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	lang, err := language.Parse(cfg.DefaultLanguage)
	if err != nil {
		lang = language.Indonesian
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 20
	}

	o := &Orchestrator{
		store:        d.Store,
		catalogs:     d.Catalogs,
		gateway:      d.Gateway,
		screen:       d.Screen,
		sanitizer:    d.Sanitizer,
		validator:    d.Validator,
		engine:       d.Engine,
		coordinator:  d.Coordinator,
		usage:        d.Usage,
		notifier:     d.Notifier,
		logger:       logger,
		defaultLang:  lang,
		location:     loc,
		historyLimit: limit,
	}
	o.now = func() time.Time { return time.Now().In(o.location) }
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Language returns the reply language code ("id" or "en") for req.
func (o *Orchestrator) Language(req Request) string {
	return languageCode(DetectLanguage(req.Message, req.History, o.defaultLang))
}

// FailureText is the localized text shown to the visitor when a turn failed with err.
func (o *Orchestrator) FailureText(req Request, err error) string {
	lang := o.Language(req)
	var blocked *BlockedError
	var quota *QuotaError
	switch {
	case errors.As(err, &blocked):
		return blocked.Text
	case errors.As(err, &quota):
		return quota.Text
	case errors.Is(err, ErrValidation):
		return localize(lang, msgInvalid)
	case errors.Is(err, ai.ErrModelUnavailable):
		return localize(lang, msgUnavailable)
	}
	return localize(lang, msgFailure)
}

// turn carries the trace of one request through the state machine.
type turn struct {
	tenant *models.Tenant
	lang   string
	states []State
}

func (t *turn) enter(s State) {
	t.states = append(t.states, s)
}

// Handle runs one chat turn.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Reply, error) {
	start := time.Now()
	reply, err := o.handle(ctx, req)
	metrics.ChatTurnDuration.Observe(time.Since(start).Seconds())
	metrics.ChatTurnsTotal.WithLabelValues(outcome(err)).Inc()
	return reply, err
}

func outcome(err error) string {
	var blocked *BlockedError
	var quota *QuotaError
	switch {
	case err == nil:
		return "returned"
	case errors.As(err, &blocked):
		return "blocked"
	case errors.As(err, &quota):
		return "quota_exceeded"
	case errors.Is(err, ai.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrValidation):
		return "invalid"
	}
	return "error"
}

func (o *Orchestrator) handle(ctx context.Context, req Request) (*Reply, error) {
	t := &turn{}
	t.enter(StateReceived)

	req.Message = strings.TrimSpace(req.Message)
	req.History = filterHistory(req.History, o.historyLimit)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	tenant, err := o.store.EnsureTenant(ctx, models.TenantDomain(req.TenantID))
	if err != nil {
		return nil, fmt.Errorf("ensure tenant: %w", err)
	}
	if !tenant.Active {
		return nil, fmt.Errorf("%w: tenant %s is inactive", ErrValidation, tenant.ID)
	}
	t.tenant = tenant
	t.lang = o.Language(req)
	log := o.logger.With("tenant", tenant.ID)

	// Screen before any model or catalog call.
	threats := o.screen.Classify(tenant.Domain(), req.Message)
	t.enter(StateScreened)
	if len(threats) > 0 {
		o.recordIncident(ctx, tenant.ID, req.Message, threats)
	}
	if threats.Blocking() {
		t.enter(StateBlocked)
		log.Warn("chat message blocked", "states", t.states, "severity", threats.Max().String())
		return nil, &BlockedError{Threats: threats, Text: localize(t.lang, msgBlocked)}
	}

	status, err := o.usage.Check(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("check usage: %w", err)
	}
	t.enter(StateQuotaChecked)
	if status.Exceeded {
		t.enter(StateQuotaExceeded)
		log.Warn("chat turn refused, token quota exceeded", "used", status.Used, "limit", status.Limit)
		return nil, &QuotaError{Status: status, Text: localize(t.lang, msgQuota)}
	}

	session := o.gateway.NewSession(tenant.ID, systemPrompt(tenant), Tools())
	session.History = replay(req.History)
	defer o.recordUsage(ctx, tenant.ID, session)

	feedback, err := o.store.RecentNegativeFeedback(ctx, tenant.ID, feedbackCandidates)
	if err != nil {
		log.Warn("negative feedback unavailable", "error", err)
	}
	message := composeMessage(promptInput{
		message:           req.Message,
		currentURL:        req.CurrentURL,
		currentPropertyID: req.CurrentPropertyID,
		lang:              t.lang,
		now:               o.now(),
		feedback:          feedback,
	})

	resp, err := o.gateway.Invoke(ctx, session, message)
	if err != nil {
		return nil, fmt.Errorf("invoke model: %w", err)
	}
	t.enter(StateModelInvoked)

	if !resp.HasToolCall() && needsSearch(resp.Text) {
		t.enter(StateDirectText)
		t.enter(StateGuardRetry)
		metrics.GuardRetriesTotal.Inc()
		log.Info("reply stated listings without searching, asking the model to search")
		resp, err = o.gateway.Invoke(ctx, session, guardCorrection)
		if err != nil {
			return nil, fmt.Errorf("invoke model after guard: %w", err)
		}
	}

	reply := &Reply{Language: t.lang, Model: resp.Model, UsageWarning: status.Warning}
	toolUsed, searched := false, false
	var results []models.Property

	if resp.HasToolCall() {
		t.enter(StateToolCall)
		call := resp.ToolCalls[0]
		if len(resp.ToolCalls) > 1 {
			log.Info("model asked for several tools, running the first", "tool", call.Name, "calls", len(resp.ToolCalls))
		}
		run := o.dispatch(ctx, turnScope{tenant: tenant, lang: t.lang, message: req.Message, history: req.History}, call)
		t.enter(StateToolExecuted)
		toolUsed, searched = true, run.searched
		results = run.properties
		reply.Tool = call.Name
		reply.Properties = run.properties

		resp, err = o.gateway.Continue(ctx, session, run.result)
		if err != nil {
			return nil, fmt.Errorf("continue model: %w", err)
		}
		t.enter(StateModelContinued)
		reply.Model = resp.Model
		if strings.TrimSpace(resp.Text) == "" {
			resp.Text = run.fallback
		}
	} else if t.states[len(t.states)-1] != StateGuardRetry {
		t.enter(StateDirectText)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = localize(t.lang, msgFailure)
	}

	reply.Warnings = o.validator.Validate(validation.Input{
		TenantID: tenant.ID,
		Text:     text,
		Results:  results,
		ToolUsed: toolUsed,
		Searched: searched,
	})
	for i := range reply.Warnings {
		o.audit(ctx, models.CollectionValidationWarnings, tenant.ID, reply.Warnings[i])
	}
	t.enter(StateValidated)

	clean := o.sanitizer.Sanitize(tenant.Domain(), text)
	for _, r := range clean.Redactions {
		metrics.RedactionsTotal.WithLabelValues(r.Kind).Add(float64(r.Count))
	}
	if len(clean.Redactions) > 0 {
		o.audit(ctx, models.CollectionRedactions, tenant.ID, clean.Redactions)
	}
	reply.Text = clean.Sanitized
	reply.Redactions = clean.Redactions
	t.enter(StateSanitized)

	reply.Usage = session.Usage
	t.enter(StateReturned)
	reply.States = t.states

	log.Info("chat turn completed",
		"states", t.states,
		"model", reply.Model,
		"tool", reply.Tool,
		"properties", len(reply.Properties),
		"warnings", len(reply.Warnings),
	)
	return reply, nil
}

// needsSearch is the hallucination guard: a reply that presents listings and
// states listing facts without having searched.
func needsSearch(text string) bool {
	return validation.LooksLikePropertyAnswer(text) && validation.HasPropertyFacts(text)
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.TenantID) == "" {
		return fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	if req.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if n := utf8.RuneCountInString(req.Message); n > MaxMessageRunes {
		return fmt.Errorf("%w: message is %d characters, limit is %d", ErrValidation, n, MaxMessageRunes)
	}
	return nil
}

// filterHistory keeps user and model turns that carry text, newest last,
// bounded to limit entries.
func filterHistory(history []Turn, limit int) []Turn {
	out := make([]Turn, 0, len(history))
	for _, h := range history {
		role := strings.ToLower(strings.TrimSpace(h.Role))
		if role == "assistant" {
			role = RoleModel
		}
		if role != RoleUser && role != RoleModel {
			continue
		}
		if strings.TrimSpace(h.Text) == "" {
			continue
		}
		out = append(out, Turn{Role: role, Text: h.Text})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func replay(history []Turn) []models.Message {
	msgs := make([]models.Message, 0, len(history))
	for _, h := range history {
		role := models.RoleUser
		if h.Role == RoleModel {
			role = models.RoleModel
		}
		msgs = append(msgs, models.Message{Role: role, Text: h.Text})
	}
	return msgs
}

func (o *Orchestrator) recordIncident(ctx context.Context, tenantID, message string, threats security.Threats) {
	for _, th := range threats {
		metrics.ThreatsTotal.WithLabelValues(string(th.Kind), th.Severity.String()).Inc()
	}
	incident := models.SecurityIncident{
		TenantID:  tenantID,
		Timestamp: o.now(),
		Message:   message,
		Threats:   threats,
		Blocked:   threats.Blocking(),
	}
	o.logger.Warn("security threat detected",
		"tenant", tenantID,
		"threats", len(threats),
		"severity", threats.Max().String(),
		"blocked", incident.Blocked,
	)
	o.audit(ctx, models.CollectionSecurityIncidents, tenantID, incident)
}

// audit appends to the incident log. Failures are logged only.
func (o *Orchestrator) audit(ctx context.Context, collection, tenantID string, payload any) {
	rec := &models.AuditRecord{
		Collection: collection,
		TenantID:   tenantID,
		Payload:    payload,
		CreatedAt:  o.now(),
	}
	if err := o.store.AppendAudit(ctx, rec); err != nil {
		o.logger.Error("failed to append audit record",
			"tenant", tenantID,
			"collection", collection,
			"error", err,
		)
	}
}

func (o *Orchestrator) recordUsage(ctx context.Context, tenantID string, s *ai.Session) {
	if s.Usage.Input == 0 && s.Usage.Output == 0 {
		return
	}
	if err := o.usage.Record(ctx, tenantID, s.Usage.Input, s.Usage.Output); err != nil {
		o.logger.Error("failed to record token usage", "tenant", tenantID, "error", err)
	}
}
