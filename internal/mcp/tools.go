package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Twixes/mcpolice/internal/model"
	"github.com/Twixes/mcpolice/internal/violation"
)

// Tool names
const (
	ToolReportViolation = "report_violation"
	ToolListStatutes    = "list_statutes"
	ToolStats           = "get_violation_stats"
	ToolListViolations  = "list_violations"
)

// Tool describes one callable tool
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON schema of a tool's arguments
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property is one argument in an InputSchema
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// tools is the tools/list result, in presentation order
func tools() []Tool {
	severities := make([]string, 0, len(model.Severities))
	for _, s := range model.Severities {
		severities = append(severities, string(s))
	}

	return []Tool{
		{
			Name:        ToolReportViolation,
			Description: "Report content that violates an international or regional statute. Use list_statutes for valid statute names.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"statute":                  {Type: "string", Description: "Exact statute article, e.g. \"Rome Statute Article 7\""},
					"responsible_organization": {Type: "string", Description: "Organization responsible for the offending content"},
					"offending_content":        {Type: "string", Description: "The content that violates the statute"},
					"detected_by":              {Type: "string", Description: "Name of the reporting agent"},
				},
				Required: []string{"statute", "responsible_organization", "offending_content"},
			},
		},
		{
			Name:        ToolListStatutes,
			Description: "List every statute a violation can be reported under.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        ToolStats,
			Description: "Aggregate statistics over all reported violations.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        ToolListViolations,
			Description: "List reported violations, newest first.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"limit":        {Type: "integer", Description: "Page size (default 50)"},
					"offset":       {Type: "integer", Description: "Records to skip"},
					"severity":     {Type: "string", Enum: severities},
					"jurisdiction": {Type: "string", Description: "Only violations listing this jurisdiction"},
				},
			},
		},
	}
}

func (h *Handler) callTool(ctx context.Context, params CallParams) (ToolResult, *Error) {
	switch params.Name {
	case ToolReportViolation:
		return h.reportViolation(ctx, params.Arguments)
	case ToolListStatutes:
		return h.listStatutes(), nil
	case ToolStats:
		return h.violationStats(ctx)
	case ToolListViolations:
		return h.listViolations(ctx, params.Arguments)
	default:
		return ToolResult{}, &Error{Code: CodeMethodNotFound, Message: "Unknown tool: " + params.Name}
	}
}

func (h *Handler) reportViolation(ctx context.Context, raw json.RawMessage) (ToolResult, *Error) {
	var args ReportArgs
	if rpcErr := decodeParams(raw, &args); rpcErr != nil {
		return ToolResult{}, rpcErr
	}

	rec, err := h.svc.Submit(ctx, violation.SubmitRequest{
		Statute:                 args.Statute,
		ResponsibleOrganization: args.ResponsibleOrganization,
		OffendingContent:        args.OffendingContent,
		DetectedBy:              args.DetectedBy,
	})
	if err != nil {
		return ToolResult{}, h.serviceError(err)
	}

	// The record snapshot carries no organization
	info, _ := h.svc.Statute(rec.Statute)

	var b strings.Builder
	fmt.Fprintf(&b, "Violation reported.\n\n")
	fmt.Fprintf(&b, "ID: %s\n", rec.ID)
	fmt.Fprintf(&b, "Statute: %s (%s)\n", rec.Statute, info.Organization)
	fmt.Fprintf(&b, "Severity: %s\n", rec.Violation.Severity)
	fmt.Fprintf(&b, "Jurisdiction: %s\n", strings.Join(rec.Violation.Jurisdiction, ", "))
	fmt.Fprintf(&b, "Responsible organization: %s\n", rec.ResponsibleOrganization)
	fmt.Fprintf(&b, "Description: %s\n", rec.Violation.Description)
	return textResult(b.String()), nil
}

func (h *Handler) listStatutes() ToolResult {
	var b strings.Builder
	b.WriteString("Available statutes:\n\n")
	for _, s := range h.svc.Statutes() {
		fmt.Fprintf(&b, "- %s [%s, %s, %s]: %s\n",
			s.Article, s.Organization, s.Severity, strings.Join(s.Jurisdiction, "/"), s.Description)
	}
	return textResult(b.String())
}

func (h *Handler) violationStats(ctx context.Context) (ToolResult, *Error) {
	stats, err := h.svc.Stats(ctx)
	if err != nil {
		return ToolResult{}, h.serviceError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total violations: %d\n", stats.Total)
	fmt.Fprintf(&b, "Reported in the last 24h: %d\n", stats.Recent24h)
	writeCounts(&b, "By severity", stats.BySeverity)
	writeCounts(&b, "By jurisdiction", stats.ByJurisdiction)
	writeCounts(&b, "By organization", stats.ByOrganization)
	return textResult(b.String()), nil
}

func writeCounts(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %d\n", k, counts[k])
	}
}

func (h *Handler) listViolations(ctx context.Context, raw json.RawMessage) (ToolResult, *Error) {
	var args ListArgs
	if rpcErr := decodeParams(raw, &args); rpcErr != nil {
		return ToolResult{}, rpcErr
	}
	if rpcErr := args.Validate(); rpcErr != nil {
		return ToolResult{}, rpcErr
	}

	filter := model.Filter{Jurisdiction: args.Jurisdiction}
	if args.Severity != "" {
		sev, err := model.ParseSeverity(args.Severity)
		if err != nil {
			return ToolResult{}, invalidParams("Invalid params: %v", err)
		}
		filter.Severity = sev
	}

	page, err := h.svc.Query(ctx, filter, model.Pagination{Limit: args.Limit, Offset: args.Offset})
	if err != nil {
		return ToolResult{}, h.serviceError(err)
	}

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		h.logger.Error("Failed to encode violations page", "error", err)
		return ToolResult{}, internalError()
	}
	return textResult(string(data)), nil
}

// serviceError maps service errors onto JSON-RPC errors. Store failures are
// logged by the service and reported without detail.
func (h *Handler) serviceError(err error) *Error {
	switch {
	case errors.Is(err, violation.ErrValidation),
		errors.Is(err, violation.ErrUnknownStatute),
		errors.Is(err, violation.ErrNotFound):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return internalError()
	}
}
