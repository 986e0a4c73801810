package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"networth/internal/core"
	ports "networth/internal/sheets"
)

// Ensure interface conformance
var (
	_ ports.EventJournal      = (*Client)(nil)
	_ ports.DashboardExporter = (*Client)(nil)
)

// valuesAPI is the slice of the Sheets values service the client uses.
type valuesAPI interface {
	get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	// Base names without year (e.g. "Journal"); the year of the data is prefixed.
	journalBase   string
	dashboardBase string
}

type Options struct {
	SpreadsheetID  string
	JournalSheet   string
	DashboardSheet string
}

// New creates a Sheets client authenticated with service account credentials
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceValues{svc: svc}, opts), nil
}

func newClient(values valuesAPI, opts Options) *Client {
	journal := strings.TrimSpace(opts.JournalSheet)
	if journal == "" {
		journal = "Journal"
	}
	dashboard := strings.TrimSpace(opts.DashboardSheet)
	if dashboard == "" {
		dashboard = "Dashboard"
	}
	return &Client{
		values:        values,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		journalBase:   journal,
		dashboardBase: dashboard,
	}
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendEvent writes the event to the next empty row of "<year> <journal>".
func (c *Client) AppendEvent(ctx context.Context, e core.LedgerEvent) (string, error) {
	if e.ID == "" {
		return "", errors.New("ledger event without id")
	}
	sheet := yearPrefixedName(c.journalBase, e.OccurredAt.Year())
	return c.appendRows(ctx, sheet, journalHeader, [][]any{eventRow(e)}, "G")
}

// ExportDashboard writes a summary block below the existing content of
// "<year> <dashboard>", the year being the start of the summarized window.
func (c *Client) ExportDashboard(ctx context.Context, s ports.DashboardSnapshot) (string, error) {
	if s.UserID == "" {
		return "", errors.New("dashboard snapshot without user")
	}
	sheet := yearPrefixedName(c.dashboardBase, s.From.Year())
	return c.appendRows(ctx, sheet, nil, dashboardRows(s), "C")
}

// appendRows finds the next empty row in column A and writes rows from there.
// header is written first when the sheet is still empty.
func (c *Client) appendRows(ctx context.Context, sheet string, header []any, rows [][]any, lastCol string) (string, error) {
	existing, err := c.values.get(ctx, c.spreadsheetID, fmt.Sprintf("%s!A:A", sheet))
	if err != nil {
		return "", fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	}
	if len(existing) == 0 && header != nil {
		rows = append([][]any{header}, rows...)
	}
	first := len(existing) + 1
	last := first + len(rows) - 1

	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, first, lastCol, last)
	if err := c.values.update(ctx, c.spreadsheetID, rng, rows); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return rng, nil
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s *serviceValues) get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
