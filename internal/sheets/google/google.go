package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"conti/internal/core"
	ports "conti/internal/sheets"
)

const defaultSheetPrefix = "Balances"

// Client writes group reports to a spreadsheet, one tab per group.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetPrefix   string

	mu   sync.Mutex
	tabs map[string]struct{}
}

var _ ports.ReportExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Auth, in order of preference: GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, then an
// OAuth client (GOOGLE_OAUTH_CLIENT_JSON/FILE) with a token minted by
// oauth-init (GOOGLE_OAUTH_TOKEN_JSON/FILE).
// Optional: GOOGLE_SHEET_PREFIX (default "Balances").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	prefix := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_PREFIX"))
	if prefix == "" {
		prefix = defaultSheetPrefix
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, prefix), nil
}

func New(svc *gsheet.Service, spreadsheetID, sheetPrefix string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetPrefix:   sheetPrefix,
		tabs:          make(map[string]struct{}),
	}
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	creds, err := readSecret("GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE")
	if err != nil {
		return nil, err
	}
	if creds == nil {
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
			if creds, err = os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("read service account file: %w", err)
			}
		}
	}
	if creds != nil {
		slog.InfoContext(ctx, "Using service account credentials", "credentials_size", len(creds))
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	clientJSON, err := readSecret("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	tokenJSON, err := readSecret("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil || tokenJSON == nil {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON/FILE, GOOGLE_APPLICATION_CREDENTIALS, or GOOGLE_OAUTH_CLIENT_* with GOOGLE_OAUTH_TOKEN_*)")
	}

	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	slog.InfoContext(ctx, "Using OAuth user credentials", "token_expiry", tok.Expiry)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &tok)))
}

// readSecret returns the inline value of jsonKey, else the contents of the
// file named by fileKey, else nil.
func readSecret(jsonKey, fileKey string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonKey)); v != "" {
		return []byte(v), nil
	}
	path := strings.TrimSpace(os.Getenv(fileKey))
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileKey, err)
	}
	return b, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ExportReport replaces the contents of the group's tab with the report.
func (c *Client) ExportReport(ctx context.Context, r core.GroupReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	tab := tabName(c.sheetPrefix, r)
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	rng := quoteSheet(tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tab, err)
	}

	rows := reportRows(r)
	vr := &gsheet.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng+"!A1", vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", tab, err)
	}

	slog.InfoContext(ctx, "Report exported to Google Sheets",
		"group_id", r.GroupID,
		"sheet", tab,
		"rows", len(rows))
	return nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tabs[tab]; ok {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.tabs[sh.Properties.Title] = struct{}{}
		}
	}
	if _, ok := c.tabs[tab]; ok {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", tab, err)
	}
	c.tabs[tab] = struct{}{}
	slog.InfoContext(ctx, "Created sheet tab", "sheet", tab)
	return nil
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
