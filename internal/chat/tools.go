package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/propchat/internal/catalog"
	"github.com/kiranshivaraju/propchat/internal/metrics"
	"github.com/kiranshivaraju/propchat/internal/notify"
	"github.com/kiranshivaraju/propchat/internal/price"
	"github.com/kiranshivaraju/propchat/internal/search"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Tool names the model may call.
const (
	ToolSearchProperties = "search_properties"
	ToolSearchOffice     = "search_office_database"
	ToolCollectVisitor   = "collect_visitor_info"
	ToolSendInquiry      = "send_inquiry_email"
	ToolScheduleViewing  = "schedule_viewing"
)

var searchParams = map[string]models.ToolParam{
	"location":          {Type: "string", Description: "Area, district or city, e.g. Kemang or Jakarta Selatan"},
	"max_price":         {Type: "string", Description: "Budget ceiling as the visitor said it, e.g. 500 juta or 2 M"},
	"type":              {Type: "string", Description: "Listing type", Enum: []string{models.PropertyTypeSale, models.PropertyTypeRent}},
	"min_bedrooms":      {Type: "integer", Description: "Minimum number of bedrooms"},
	"property_category": {Type: "string", Description: "house, apartment, shophouse, land, building, villa or warehouse"},
}

func withKeyword(params map[string]models.ToolParam) map[string]models.ToolParam {
	out := make(map[string]models.ToolParam, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["keyword"] = models.ToolParam{Type: "string", Description: "Feature or word the listing must mention, e.g. pool"}
	return out
}

var visitorParams = map[string]models.ToolParam{
	"visitor_name":  {Type: "string", Description: "Visitor's full name"},
	"visitor_phone": {Type: "string", Description: "Visitor's phone number"},
	"visitor_email": {Type: "string", Description: "Visitor's email address"},
}

func extend(base map[string]models.ToolParam, extra map[string]models.ToolParam) map[string]models.ToolParam {
	out := make(map[string]models.ToolParam, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Tools returns the schemas declared to the model on every turn.
func Tools() []models.ToolSchema {
	return []models.ToolSchema{
		{
			Name:        ToolSearchProperties,
			Description: "Search the agent's own property listings. Call this before describing any listing.",
			Properties:  withKeyword(searchParams),
		},
		{
			Name:        ToolSearchOffice,
			Description: "Search the office and national co-brokerage network when the agent's own listings have no match.",
			Properties:  searchParams,
		},
		{
			Name:        ToolCollectVisitor,
			Description: "Record the visitor's contact details so the agent can follow up.",
			Properties:  visitorParams,
			Required:    []string{"visitor_name", "visitor_phone", "visitor_email"},
		},
		{
			Name:        ToolSendInquiry,
			Description: "Forward the visitor's inquiry to the agent by email.",
			Properties: extend(visitorParams, map[string]models.ToolParam{
				"inquiry_summary":      {Type: "string", Description: "Short summary of what the visitor wants"},
				"conversation_history": {Type: "string", Description: "Relevant excerpt of the conversation"},
			}),
			Required: []string{"visitor_name", "visitor_phone", "visitor_email", "inquiry_summary"},
		},
		{
			Name:        ToolScheduleViewing,
			Description: "Request a property viewing on the visitor's behalf.",
			Properties: extend(visitorParams, map[string]models.ToolParam{
				"property_id":    {Type: "string", Description: "ID of the listing to view"},
				"preferred_date": {Type: "string", Description: "Date as YYYY-MM-DD"},
				"preferred_time": {Type: "string", Description: "Time of day, e.g. 10:00"},
				"message":        {Type: "string", Description: "Anything the visitor wants the agent to know"},
			}),
			Required: []string{"property_id", "visitor_name", "visitor_email", "visitor_phone", "preferred_date", "preferred_time"},
		},
	}
}

var requiredArgs = func() map[string][]string {
	m := make(map[string][]string)
	for _, t := range Tools() {
		m[t.Name] = t.Required
	}
	return m
}()

// toolRun is the outcome of one dispatched tool.
type toolRun struct {
	result     models.ToolResult
	properties []models.Property
	searched   bool
	// fallback is shown when the model's follow-up carries no text.
	fallback string
}

// turnScope is what a tool needs to know about the turn it runs in.
type turnScope struct {
	tenant  *models.Tenant
	lang    string
	message string
	history []Turn
}

func (o *Orchestrator) dispatch(ctx context.Context, ts turnScope, call models.ToolCall) toolRun {
	metrics.ToolCallsTotal.WithLabelValues(call.Name).Inc()
	run := toolRun{result: models.ToolResult{CallID: call.ID, Name: call.Name}}

	if missing := missingArgs(call); len(missing) > 0 {
		run.result.Content = map[string]any{
			"success": false,
			"error":   "missing required fields: " + strings.Join(missing, ", "),
		}
		return run
	}

	switch call.Name {
	case ToolSearchProperties:
		return o.searchOwn(ctx, ts, call, run)
	case ToolSearchOffice:
		return o.searchNetwork(ctx, ts, call, run)
	case ToolCollectVisitor:
		return o.collectVisitor(ctx, ts, call, run)
	case ToolScheduleViewing:
		return o.scheduleViewing(ctx, ts, call, run)
	case ToolSendInquiry:
		return o.sendInquiry(ts, call, run)
	}

	o.logger.Warn("model called unknown tool", "tenant", ts.tenant.ID, "tool", call.Name)
	run.result.Content = map[string]any{"success": false, "error": "unknown tool " + call.Name}
	return run
}

func missingArgs(call models.ToolCall) []string {
	var missing []string
	for _, name := range requiredArgs[call.Name] {
		if argString(call.Args, name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func criteriaFrom(args map[string]any) search.Criteria {
	return search.Criteria{
		Location:    argString(args, "location"),
		MaxPrice:    argAmount(args, "max_price"),
		Type:        argString(args, "type"),
		MinBedrooms: argInt(args, "min_bedrooms"),
		Category:    argString(args, "property_category"),
		Keyword:     argString(args, "keyword"),
	}
}

func (o *Orchestrator) searchOwn(ctx context.Context, ts turnScope, call models.ToolCall, run toolRun) toolRun {
	run.fallback = localize(ts.lang, msgNoResults)

	props, err := o.catalogs.Resolve(ctx, ts.tenant.ID)
	if err != nil && !errors.Is(err, catalog.ErrTenantNotFound) {
		o.logger.Error("catalog unavailable", "tenant", ts.tenant.ID, "error", err)
		run.result.Content = map[string]any{"count": 0, "error": "catalog temporarily unavailable"}
		return run
	}

	res := o.engine.Search(props, criteriaFrom(call.Args), search.ModePersonal)
	run.searched = true
	run.properties = res.Properties
	content := map[string]any{
		"count":      len(res.Properties),
		"total":      res.Total,
		"properties": propertyViews(res.Properties),
	}
	if res.Note != "" {
		content["note"] = res.Note
	}
	run.result.Content = content
	return run
}

func (o *Orchestrator) searchNetwork(ctx context.Context, ts turnScope, call models.ToolCall, run toolRun) toolRun {
	run.fallback = localize(ts.lang, msgNoResults)

	res, err := o.coordinator.CascadeSearch(ctx, ts.tenant.ID, criteriaFrom(call.Args))
	if err != nil {
		o.logger.Error("co-brokerage search failed", "tenant", ts.tenant.ID, "error", err)
		run.result.Content = map[string]any{"count": 0, "error": "network search temporarily unavailable"}
		return run
	}

	run.searched = true
	run.properties = res.Properties
	content := map[string]any{
		"count":      len(res.Properties),
		"level":      res.Level,
		"properties": propertyViews(res.Properties),
	}
	if res.Note != "" {
		content["note"] = res.Note
	}
	run.result.Content = content
	return run
}

func visitorFrom(tenantID, source string, args map[string]any) *models.Visitor {
	return &models.Visitor{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     argString(args, "visitor_name"),
		Email:    argString(args, "visitor_email"),
		Phone:    argString(args, "visitor_phone"),
		Message:  argString(args, "message"),
		Source:   source,
	}
}

// saveVisitor persists the lead. A failure is logged and the turn carries on.
func (o *Orchestrator) saveVisitor(ctx context.Context, v *models.Visitor) bool {
	v.CreatedAt = o.now()
	if err := o.store.CreateVisitor(ctx, v); err != nil {
		o.logger.Error("failed to save visitor", "tenant", v.TenantID, "source", v.Source, "error", err)
		return false
	}
	return true
}

func (o *Orchestrator) notifyAgent(t *models.Tenant, kind notify.Kind, email models.Email) bool {
	if t.AgentEmail == "" {
		o.logger.Warn("tenant has no agent email, notification skipped", "tenant", t.ID, "kind", string(kind))
		return false
	}
	o.notifier.Dispatch(kind, email)
	return true
}

func (o *Orchestrator) collectVisitor(ctx context.Context, ts turnScope, call models.ToolCall, run toolRun) toolRun {
	v := visitorFrom(ts.tenant.ID, ToolCollectVisitor, call.Args)
	saved := o.saveVisitor(ctx, v)
	notified := o.notifyAgent(ts.tenant, notify.KindAgentNotification, notify.AgentNotification(ts.tenant, *v))

	run.fallback = localize(ts.lang, msgVisitorSaved)
	run.result.Content = map[string]any{
		"success":        true,
		"saved":          saved,
		"agent_notified": notified,
	}
	return run
}

func (o *Orchestrator) scheduleViewing(ctx context.Context, ts turnScope, call models.ToolCall, run toolRun) toolRun {
	v := visitorFrom(ts.tenant.ID, ToolScheduleViewing, call.Args)
	v.PropertyID = argString(call.Args, "property_id")
	v.PreferredTime = argString(call.Args, "preferred_time")

	supplied := argString(call.Args, "preferred_date")
	date := resolveViewingDate(ts.message, supplied, o.now())
	v.PreferredDate = date.Format(dateLayout)
	if v.PreferredDate != supplied {
		o.logger.Info("viewing date corrected",
			"tenant", ts.tenant.ID,
			"supplied", supplied,
			"resolved", v.PreferredDate,
		)
	}

	prop := o.findProperty(ctx, ts.tenant.ID, v.PropertyID)
	saved := o.saveVisitor(ctx, v)

	o.notifier.Dispatch(notify.KindVisitorConfirmation, notify.VisitorConfirmation(ts.tenant, *v, prop, ts.lang))
	notified := o.notifyAgent(ts.tenant, notify.KindAgentLead, notify.AgentLead(ts.tenant, *v, prop))

	content := map[string]any{
		"success":        true,
		"saved":          saved,
		"agent_notified": notified,
		"date":           v.PreferredDate,
		"weekday":        date.Weekday().String(),
		"time":           v.PreferredTime,
	}
	if prop != nil {
		content["property"] = propertyView(*prop)
	} else {
		content["property_note"] = "listing " + v.PropertyID + " was not found in the catalog; the agent will confirm the details"
	}
	run.fallback = localize(ts.lang, msgViewingScheduled)
	run.result.Content = content
	return run
}

// findProperty looks a listing up by ID or listing ID. Nil when unknown.
func (o *Orchestrator) findProperty(ctx context.Context, tenantID, id string) *models.Property {
	props, err := o.catalogs.Resolve(ctx, tenantID)
	if err != nil {
		o.logger.Warn("catalog unavailable for viewing lookup", "tenant", tenantID, "error", err)
		return nil
	}
	for i := range props {
		if strings.EqualFold(props[i].ID, id) || (props[i].ListingID != "" && strings.EqualFold(props[i].ListingID, id)) {
			p := props[i]
			return &p
		}
	}
	return nil
}

func (o *Orchestrator) sendInquiry(ts turnScope, call models.ToolCall, run toolRun) toolRun {
	v := visitorFrom(ts.tenant.ID, ToolSendInquiry, call.Args)
	history := argString(call.Args, "conversation_history")
	if history == "" {
		history = transcript(ts.history, ts.message)
	}
	notified := o.notifyAgent(ts.tenant, notify.KindInquirySummary,
		notify.InquirySummary(ts.tenant, *v, argString(call.Args, "inquiry_summary"), history))

	run.fallback = localize(ts.lang, msgInquirySent)
	run.result.Content = map[string]any{"success": true, "agent_notified": notified}
	return run
}

func transcript(history []Turn, message string) string {
	var b strings.Builder
	for _, t := range history {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	fmt.Fprintf(&b, "%s: %s", RoleUser, message)
	return b.String()
}

func propertyViews(props []models.Property) []map[string]any {
	out := make([]map[string]any, len(props))
	for i, p := range props {
		out[i] = propertyView(p)
	}
	return out
}

// propertyView is the listing as the model sees it.
func propertyView(p models.Property) map[string]any {
	v := map[string]any{
		"id":       p.ID,
		"title":    p.Title,
		"location": p.Location,
		"price":    p.Price,
		"type":     p.Type,
	}
	optional := map[string]string{
		"listing_id":  p.ListingID,
		"description": excerpt(p.Description),
		"poi":         p.POI,
		"url":         p.URL,
		"image":       p.Image,
		"eflyer":      p.Eflyer,
		"source":      p.LevelLabel,
	}
	for k, s := range optional {
		if s != "" {
			v[k] = s
		}
	}
	if p.Bedrooms > 0 {
		v["bedrooms"] = p.Bedrooms
	}
	return v
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

// argAmount reads a budget either as a number or as localized price text.
// Unparseable budgets mean no ceiling.
func argAmount(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if amount, ok := price.Parse(v); ok {
			return amount
		}
	}
	return 0
}
