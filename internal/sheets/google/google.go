package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"libreria/internal/core"
	ports "libreria/internal/sheets"

	gdrive "google.golang.org/api/drive/v3"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Ensure interface conformance
var (
	_ ports.RecordStore = (*Client)(nil)
	_ ports.Pinger      = (*Client)(nil)
)

// Config selects the spreadsheet and worksheet backing the record store.
type Config struct {
	// SpreadsheetID wins over SpreadsheetName when both are set.
	SpreadsheetID   string
	SpreadsheetName string
	// SheetName is the worksheet title; empty means the first worksheet.
	SheetName string

	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetTitle    string
	sheetID       int64
}

// New authenticates with a service account, resolves the spreadsheet and
// worksheet and returns a connected client. Any failure here means the
// store is unreachable.
func New(ctx context.Context, cfg Config) (*Client, error) {
	creds, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope, gdrive.DriveReadonlyScope),
	}
	return NewWithOptions(ctx, cfg, opts...)
}

// NewWithOptions connects using explicit client options (custom endpoint,
// HTTP client, credentials).
func NewWithOptions(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		name := strings.TrimSpace(cfg.SpreadsheetName)
		if name == "" {
			return nil, errors.New("missing spreadsheet id or name")
		}
		drv, err := gdrive.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create drive service: %w", err)
		}
		id, err = findSpreadsheetByName(ctx, drv, name)
		if err != nil {
			return nil, err
		}
	}

	c := &Client{svc: svc, spreadsheetID: id}
	if err := c.resolveSheet(ctx, strings.TrimSpace(cfg.SheetName)); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to Google Sheets",
		"spreadsheet_id", c.spreadsheetID,
		"sheet", c.sheetTitle)
	return c, nil
}

// loadCredentials reads service account credentials from config, falling
// back to GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var raw []byte
	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		raw = []byte(inline)
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	return repairPrivateKey(raw)
}

// repairPrivateKey turns literal "\n" sequences in private_key into real
// newlines. Keys pasted into env vars or secret stores often arrive escaped.
func repairPrivateKey(raw []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse service account json: %w", err)
	}
	key, ok := m["private_key"].(string)
	if !ok || !strings.Contains(key, `\n`) {
		return raw, nil
	}
	m["private_key"] = strings.ReplaceAll(key, `\n`, "\n")
	return json.Marshal(m)
}

func findSpreadsheetByName(ctx context.Context, drv *gdrive.Service, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)
	resp, err := drv.Files.List().Q(q).Fields("files(id, name)").PageSize(10).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search spreadsheet %q: %w", name, err)
	}
	if len(resp.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q not found or not shared with the service account", name)
	}
	if len(resp.Files) > 1 {
		slog.WarnContext(ctx, "Several spreadsheets share the name, using the first", "name", name, "count", len(resp.Files))
	}
	return resp.Files[0].Id, nil
}

func (c *Client) resolveSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet %s: %w", c.spreadsheetID, err)
	}
	if len(ss.Sheets) == 0 {
		return fmt.Errorf("spreadsheet %s has no worksheets", c.spreadsheetID)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		if title == "" || sh.Properties.Title == title {
			c.sheetTitle = sh.Properties.Title
			c.sheetID = sh.Properties.SheetId
			return nil
		}
	}
	return fmt.Errorf("worksheet %q not found in spreadsheet %s", title, c.spreadsheetID)
}

// Ping checks that the spreadsheet is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("ping spreadsheet: %w", err)
	}
	return nil
}

// LoadAll reads the worksheet; the first row is the header.
func (c *Client) LoadAll(ctx context.Context) ([]core.RawRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := quoteSheet(c.sheetTitle)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseRows(resp.Values), nil
}

func (c *Client) Append(ctx context.Context, row core.Row) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	headers, err := c.readHeader(ctx)
	if err != nil {
		return err
	}
	if len(headers) == 0 {
		headers = append([]string(nil), core.Columns...)
		if err := c.writeHeader(ctx, headers); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Wrote default header row", "sheet", c.sheetTitle, "columns", len(headers))
	}

	vr := &gsheet.ValueRange{Values: [][]any{row.Values(headers)}}
	rng := quoteSheet(c.sheetTitle) + "!A1"
	// RAW keeps the YYYY-MM-DD date a plain string so it reads back verbatim.
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row to %s: %w", c.sheetTitle, err)
	}
	return nil
}

func (c *Client) readHeader(ctx context.Context) ([]string, error) {
	rng := quoteSheet(c.sheetTitle) + "!1:1"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	headers := toStrings(resp.Values[0])
	for _, h := range headers {
		if h != "" {
			return headers, nil
		}
	}
	return nil, nil
}

func (c *Client) writeHeader(ctx context.Context, headers []string) error {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	rng := quoteSheet(c.sheetTitle) + "!A1"
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", c.sheetTitle, err)
	}
	return nil
}

// DeleteByDate finds the first row whose Fecha cell equals d and removes it.
func (c *Client) DeleteByDate(ctx context.Context, d core.Date) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	// the whole tab: the date column sits wherever the header puts it
	rng := quoteSheet(c.sheetTitle)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	idx := findDateRow(resp.Values, d.String())
	if idx < 0 {
		return ports.ErrNotFound
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    c.sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(idx),
			EndIndex:   int64(idx + 1),
			// sheet 0 and row 0 are valid values, not "unset"
			ForceSendFields: []string{"SheetId", "StartIndex"},
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", idx+1, c.sheetTitle, err)
	}
	slog.InfoContext(ctx, "Deleted sheet row", "sheet", c.sheetTitle, "row", idx+1, "date", d.String())
	return nil
}

// SheetTitle returns the resolved worksheet title.
func (c *Client) SheetTitle() string { return c.sheetTitle }
