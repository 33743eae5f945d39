package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"event-calendar/internal/model"
	"event-calendar/internal/service"
)

// NewServer creates an MCP server with read-only calendar tools.
// now supplies the clock used for the "today" marker.
func NewServer(calendar *service.CalendarService, categories *service.CategoryService, now func() time.Time) *server.MCPServer {
	s := server.NewMCPServer(
		"Event Calendar",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("month_calendar",
			mcp.WithDescription("Get the Monday-first calendar grid of a month with the events, visual tags and overflow counts of every day."),
			mcp.WithNumber("year",
				mcp.Required(),
				mcp.Description("Four digit year, e.g. 2024"),
			),
			mcp.WithNumber("month",
				mcp.Required(),
				mcp.Description("Month number 1-12"),
			),
		),
		handleMonthCalendar(calendar, now),
	)

	s.AddTool(
		mcp.NewTool("events_on_day",
			mcp.WithDescription("List the events covering a single day (start and end inclusive)."),
			mcp.WithString("date",
				mcp.Required(),
				mcp.Description("Date in DD.MM.YYYY or YYYY-MM-DD format"),
			),
		),
		handleEventsOnDay(calendar),
	)

	s.AddTool(
		mcp.NewTool("upcoming_events",
			mcp.WithDescription("Get the events with the latest start dates, newest first."),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of events to return (default: 10)"),
			),
			mcp.WithString("exclude_category",
				mcp.Description("Optional: category name to leave out; it must exist"),
			),
		),
		handleUpcoming(calendar),
	)

	s.AddTool(
		mcp.NewTool("list_categories",
			mcp.WithDescription("List all categories with the number of events in each."),
		),
		handleListCategories(categories),
	)

	return s
}

// CategoryResult is a category in tool responses.
type CategoryResult struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Events int64  `json:"events"`
}

func handleMonthCalendar(calendar *service.CalendarService, now func() time.Time) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		year, err := req.RequireInt("year")
		if err != nil {
			return mcp.NewToolResultError("year is required"), nil
		}
		month, err := req.RequireInt("month")
		if err != nil {
			return mcp.NewToolResultError("month is required"), nil
		}

		view, err := calendar.BuildMonth(ctx, year, month, now())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to build month: %v", err)), nil
		}
		return jsonResult(view)
	}
}

func handleEventsOnDay(calendar *service.CalendarService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("date")
		if err != nil {
			return mcp.NewToolResultError("date is required"), nil
		}
		day, err := parseDate(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid date: %v", err)), nil
		}

		events, err := calendar.EventsOnDay(ctx, day)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list events: %v", err)), nil
		}
		return jsonResult(events)
	}
}

func handleUpcoming(calendar *service.CalendarService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		events, err := calendar.ListUpcoming(ctx, req.GetInt("limit", service.DefaultUpcomingLimit), req.GetString("exclude_category", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list upcoming events: %v", err)), nil
		}
		return jsonResult(events)
	}
}

func handleListCategories(categories *service.CategoryService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		usage, err := categories.ListWithUsage(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list categories: %v", err)), nil
		}
		results := make([]CategoryResult, len(usage))
		for i, c := range usage {
			results[i] = CategoryResult{ID: c.ID, Name: c.Name, Events: c.Events}
		}
		return jsonResult(results)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("expected DD.MM.YYYY or YYYY-MM-DD, got %q", s)
}
