// Package cms fetches portfolio content from a Strapi-style headless CMS
// and maps it into documents ready for indexing.
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pauldeveaux/portfolio/internal/document"
	"github.com/pauldeveaux/portfolio/internal/log"
)

// Persona is the assistant's self-description maintained in the CMS.
type Persona struct {
	Name        string
	Description string
}

// Config holds CMS client settings.
type Config struct {
	// BaseURL is the CMS API root, e.g. "https://cms.example.com/api".
	BaseURL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Timeout bounds each request. Zero gets 15 seconds.
	Timeout time.Duration
}

// Client reads portfolio content tables from the CMS.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  log.Logger
}

// New creates a CMS client.
func New(cfg Config, logger log.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// tableSpec describes how one CMS table maps to documents: which entry
// fields feed titles, contents and links, and whether all entries
// collapse into one aggregated document.
type tableSpec struct {
	route       string
	titleKeys   []string
	contentKeys []string
	linkKeys    []string
	category    string
	aggregate   bool
}

// tables lists every CMS table indexed for retrieval.
var tables = []tableSpec{
	{
		route:       "experiences",
		titleKeys:   []string{"title", "subtitle"},
		contentKeys: []string{"text"},
		category:    "Experiences",
	},
	{
		route:       "projects",
		titleKeys:   []string{"title"},
		contentKeys: []string{"description", "markdown"},
		category:    "Projects",
	},
	{
		route:       "skills",
		titleKeys:   []string{"name"},
		contentKeys: []string{"description"},
		category:    "Skills",
	},
	{
		route:       "contact-links",
		titleKeys:   []string{"socialMedia"},
		contentKeys: []string{"text"},
		linkKeys:    []string{"link"},
		category:    "Contacts",
		aggregate:   true,
	},
	{
		route:       "homepage",
		titleKeys:   []string{"textSectionTitle"},
		contentKeys: []string{"textSectionText"},
		category:    "About",
	},
}

// FetchAll reads every indexed table and returns the mapped documents.
// Aggregated tables yield one document; the rest yield one per entry.
func (c *Client) FetchAll(ctx context.Context) ([]document.Document, error) {
	var docs []document.Document
	for _, spec := range tables {
		tableDocs, err := c.fetchTable(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("fetching table %s: %w", spec.route, err)
		}
		docs = append(docs, tableDocs...)
	}
	c.logger.Info("fetched CMS content", "tables", len(tables), "documents", len(docs))
	return docs, nil
}

// FetchPersona reads the assistant's persona from the ai-global single
// type. A missing or empty persona is not an error; callers fall back to
// the configured default.
func (c *Client) FetchPersona(ctx context.Context) (Persona, error) {
	var payload struct {
		Data map[string]any `json:"data"`
	}
	if err := c.get(ctx, "ai-global", &payload); err != nil {
		return Persona{}, fmt.Errorf("fetching ai-global: %w", err)
	}
	return Persona{
		Name:        stringField(payload.Data, "name"),
		Description: stringField(payload.Data, "description"),
	}, nil
}

func (c *Client) fetchTable(ctx context.Context, spec tableSpec) ([]document.Document, error) {
	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, spec.route, &payload); err != nil {
		return nil, err
	}

	entries, err := decodeEntries(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s entries: %w", spec.route, err)
	}

	records := make([]document.Record, 0, len(entries))
	for _, entry := range entries {
		records = append(records, entryToRecord(entry, spec))
	}

	if spec.aggregate {
		doc, err := document.Aggregate(records, spec.category)
		if err != nil {
			return nil, fmt.Errorf("aggregating %s: %w", spec.route, err)
		}
		return []document.Document{doc}, nil
	}

	docs := make([]document.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, document.FromRecord(rec, spec.category))
	}
	return docs, nil
}

// decodeEntries accepts either a list (collection types) or a single
// object (single types like homepage).
func decodeEntries(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []map[string]any
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var single map[string]any
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []map[string]any{single}, nil
}

func entryToRecord(entry map[string]any, spec tableSpec) document.Record {
	rec := document.Record{
		ID:        stringField(entry, "documentId"),
		UpdatedAt: timeField(entry, "updatedAt"),
	}
	for _, key := range spec.titleKeys {
		if v := stringField(entry, key); v != "" {
			rec.Titles = append(rec.Titles, v)
		}
	}
	for _, key := range spec.contentKeys {
		if v := stringField(entry, key); v != "" {
			rec.Contents = append(rec.Contents, v)
		}
	}
	for _, key := range spec.linkKeys {
		if v := stringField(entry, key); v != "" {
			rec.Links = append(rec.Links, v)
		}
	}
	return rec
}

func (c *Client) get(ctx context.Context, route string, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, route)
	if err != nil {
		return fmt.Errorf("building URL for %s: %w", route, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("requesting %s: unexpected status %d", route, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", route, err)
	}
	return nil
}

func stringField(entry map[string]any, key string) string {
	if entry == nil {
		return ""
	}
	v, _ := entry[key].(string)
	return strings.TrimSpace(v)
}

// timeField parses Strapi's ISO-8601 updatedAt. Unparseable values are
// treated as absent rather than failing the whole fetch.
func timeField(entry map[string]any, key string) *time.Time {
	raw := stringField(entry, key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
