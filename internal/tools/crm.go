package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rahul/workbench/pkg/config"
)

// CRMClient talks to the Salesforce, HubSpot and Zendesk REST APIs.
type CRMClient struct {
	Config config.CRMConfig
	HTTP   *http.Client
}

func NewCRMClient(cfg config.CRMConfig) *CRMClient {
	return &CRMClient{
		Config: cfg,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
	}
}

// CRM operations the catalog knows about.
const (
	CRMRead   = "read"
	CRMCreate = "create"
)

// CRMOperation normalizes a requested operation. An empty operation or "get"
// is a read; anything else unknown is kept as given.
func CRMOperation(operation string) string {
	op := strings.ToLower(strings.TrimSpace(operation))
	switch op {
	case "", "get", CRMRead:
		return CRMRead
	}
	return op
}

// CRMToolName returns the catalog id for a CRM operation. Reads target the
// plural entity, creates the singular one. Other operations get an id of
// their own so they never alias a read.
func CRMToolName(crmType, operation string) string {
	crmType = strings.ToLower(strings.TrimSpace(crmType))
	switch op := CRMOperation(operation); op {
	case CRMRead:
		entity, ok := map[string]string{"salesforce": "contacts", "hubspot": "contacts", "zendesk": "tickets"}[crmType]
		if !ok {
			entity = "records"
		}
		return fmt.Sprintf("get_%s_%s", crmType, entity)
	case CRMCreate:
		entity, ok := map[string]string{"salesforce": "lead", "hubspot": "contact", "zendesk": "ticket"}[crmType]
		if !ok {
			entity = "record"
		}
		return fmt.Sprintf("create_%s_%s", crmType, entity)
	default:
		return fmt.Sprintf("%s_%s_records", op, crmType)
	}
}

// crmTool adapts one CRM operation to the Tool interface.
type crmTool struct {
	name        string
	description string
	params      map[string]any
	run         func(ctx context.Context, in Input) Result
}

func (t *crmTool) Name() string { return t.name }

func (t *crmTool) Description() string { return t.description }

func (t *crmTool) Parameters() map[string]any { return t.params }

func (t *crmTool) Execute(ctx context.Context, in Input) (Result, error) {
	return t.run(ctx, in), nil
}

func schema(required []string, props map[string]string) map[string]any {
	properties := map[string]any{}
	for name, desc := range props {
		typ := "string"
		if name == "limit" {
			typ = "integer"
		}
		properties[name] = map[string]any{"type": typ, "description": desc}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Tools returns the six CRM tools backed by this client.
func (c *CRMClient) Tools() []Tool {
	return []Tool{
		&crmTool{
			name:        CRMToolName("salesforce", "read"),
			description: "Retrieve contacts from Salesforce.",
			params:      schema(nil, map[string]string{"limit": "Maximum number of contacts", "search_term": "Filter by name or email"}),
			run:         c.getSalesforceContacts,
		},
		&crmTool{
			name:        CRMToolName("salesforce", "create"),
			description: "Create a new lead in Salesforce.",
			params: schema([]string{"first_name", "last_name", "email", "company"}, map[string]string{
				"first_name": "Lead's first name", "last_name": "Lead's last name", "email": "Lead's email address",
				"company": "Lead's company name", "phone": "Lead's phone number", "lead_source": "Source of the lead",
			}),
			run: c.createSalesforceLead,
		},
		&crmTool{
			name:        CRMToolName("hubspot", "read"),
			description: "Retrieve contacts from HubSpot.",
			params:      schema(nil, map[string]string{"limit": "Maximum number of contacts", "search_term": "Filter by name or email"}),
			run:         c.getHubSpotContacts,
		},
		&crmTool{
			name:        CRMToolName("hubspot", "create"),
			description: "Create a new contact in HubSpot.",
			params: schema([]string{"email"}, map[string]string{
				"email": "Contact's email address", "first_name": "First name", "last_name": "Last name",
				"company": "Company name", "phone": "Phone number",
			}),
			run: c.createHubSpotContact,
		},
		&crmTool{
			name:        CRMToolName("zendesk", "read"),
			description: "Retrieve support tickets from Zendesk.",
			params:      schema(nil, map[string]string{"limit": "Maximum number of tickets", "status": "Ticket status filter (open, pending, solved)"}),
			run:         c.getZendeskTickets,
		},
		&crmTool{
			name:        CRMToolName("zendesk", "create"),
			description: "Create a support ticket in Zendesk.",
			params: schema([]string{"subject", "description", "requester_email"}, map[string]string{
				"subject": "Ticket subject", "description": "Ticket description", "requester_email": "Requester's email",
				"requester_name": "Requester's name", "priority": "low, normal, high or urgent",
			}),
			run: c.createZendeskTicket,
		},
	}
}

func (c *CRMClient) do(ctx context.Context, req *http.Request, crm string, wantStatus int) (map[string]any, Result) {
	req = req.WithContext(ctx)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, Failed("Unexpected error", err.Error(), map[string]any{"crm": crm})
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode != wantStatus {
		return nil, Failed(crm+" API error", string(body), map[string]any{"crm": crm, "status_code": resp.StatusCode})
	}

	var payload map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, Failed("Unexpected error", fmt.Sprintf("decode response: %v", err), map[string]any{"crm": crm})
		}
	}
	return payload, nil
}

func newJSONRequest(method, rawURL string, body any) (*http.Request, error) {
	if body == nil {
		return http.NewRequest(method, rawURL, nil)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return http.NewRequest(method, rawURL, bytes.NewReader(data))
}

func success(crm string, data any, extra map[string]any) Result {
	res := Result{
		"status":    "success",
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"crm":       crm,
	}
	for k, v := range extra {
		res[k] = v
	}
	return res
}

// Salesforce

func (c *CRMClient) salesforceAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Config.Salesforce.AccessToken)
}

func (c *CRMClient) getSalesforceContacts(ctx context.Context, in Input) Result {
	const crm = "Salesforce"
	if c.Config.Salesforce.AccessToken == "" {
		return Failed("Salesforce authentication required", "Please configure SALESFORCE_ACCESS_TOKEN", map[string]any{"crm": crm})
	}

	soql := "SELECT Id, Name, Email, Phone, Account.Name, CreatedDate, LastModifiedDate FROM Contact"
	if term := in.String("search_term"); term != "" {
		term = strings.ReplaceAll(term, "'", "\\'")
		soql += fmt.Sprintf(" WHERE Name LIKE '%%%s%%' OR Email LIKE '%%%s%%'", term, term)
	}
	soql += fmt.Sprintf(" ORDER BY LastModifiedDate DESC LIMIT %d", in.Int("limit", 10))

	endpoint := strings.TrimRight(c.Config.Salesforce.InstanceURL, "/") + "/services/data/v52.0/query?" + url.Values{"q": {soql}}.Encode()
	req, err := newJSONRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return Failed("Unexpected error", err.Error(), map[string]any{"crm": crm})
	}
	c.salesforceAuth(req)

	payload, failed := c.do(ctx, req, crm, http.StatusOK)
	if failed != nil {
		return failed
	}
	records, _ := payload["records"].([]any)
	if records == nil {
		records = []any{}
	}
	return success(crm, records, map[string]any{"total_size": payload["totalSize"], "query": soql})
}

func (c *CRMClient) createSalesforceLead(ctx context.Context, in Input) Result {
	const crm = "Salesforce"
	if c.Config.Salesforce.AccessToken == "" {
		return Failed("Salesforce authentication required", "Please configure SALESFORCE_ACCESS_TOKEN", map[string]any{"crm": crm})
	}

	lead := map[string]any{
		"FirstName": in.String("first_name"),
		"LastName":  in.String("last_name"),
		"Email":     in.String("email"),
		"Company":   in.String("company"),
	}
	if v := in.String("phone"); v != "" {
		lead["Phone"] = v
	}
	if v := in.String("lead_source"); v != "" {
		lead["LeadSource"] = v
	}

	endpoint := strings.TrimRight(c.Config.Salesforce.InstanceURL, "/") + "/services/data/v52.0/sobjects/Lead"
	req, err := newJSONRequest(http.MethodPost, endpoint, lead)
	if err != nil {
		return Failed("Unexpected error", err.Error(), map[string]any{"crm": crm})
	}
	c.salesforceAuth(req)

	payload, failed := c.do(ctx, req, crm, http.StatusCreated)
	if failed != nil {
		return failed
	}
	return success(crm, lead, map[string]any{"lead_id": payload["id"]})
}

// HubSpot

func (c *CRMClient) hubspotRequest(method, path string, query url.Values, body any) (*http.Request, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.Config.HubSpot.AccessToken == "" && c.Config.HubSpot.APIKey != "" {
		query.Set("hapikey", c.Config.HubSpot.APIKey)
	}
	endpoint := strings.TrimRight(c.Config.HubSpot.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := newJSONRequest(method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if c.Config.HubSpot.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.HubSpot.AccessToken)
	}
	return req, nil
}

func (c *CRMClient) hubspotConfigured() bool {
	return c.Config.HubSpot.AccessToken != "" || c.Config.HubSpot.APIKey != ""
}

func (c *CRMClient) getHubSpotContacts(ctx context.Context, in Input) Result {
	const crm = "HubSpot"
	if !c.hubspotConfigured() {
		return Failed("HubSpot authentication required", "Please configure HUBSPOT_ACCESS_TOKEN or HUBSPOT_API_KEY", map[string]any{"crm": crm})
	}

	limit := in.Int("limit", 10)
	props := []string{"firstname", "lastname", "email", "phone", "company", "createdate"}

	var req *http.Request
	var err error
	if term := in.String("search_term"); term != "" {
		req, err = c.hubspotRequest(http.MethodPost, "/crm/v3/objects/contacts/search", nil, map[string]any{
			"query":      term,
			"limit":      limit,
			"properties": props,
		})
	} else {
		req, err = c.hubspotRequest(http.MethodGet, "/crm/v3/objects/contacts", url.Values{
			"limit":      {strconv.Itoa(limit)},
			"properties": {strings.Join(props, ",")},
		}, nil)
	}
	if err != nil {
		return Failed("Unexpected error", err.Error(), map[string]any{"crm": crm})
	}

	payload, failed := c.do(ctx, req, crm, http.StatusOK)
	if failed != nil {
		return failed
	}
	results, _ := payload["results"].([]any)
	if results == nil {
		results = []any{}
	}
	return success(crm, results, map[string]any{"total": len(results)})
}

func (c *CRMClient) createHubSpotContact(ctx context.Context, in Input) Result {
	const crm = "HubSpot"
	if !c.hubspotConfigured() {
		return Failed("HubSpot authentication required", "Please configure HUBSPOT_ACCESS_TOKEN or HUBSPOT_API_KEY", map[string]any{"crm": crm})
	}

	props := map[string]any{"email": in.String("email")}
	for key, prop := range map[string]string{"first_name": "firstname", "last_name": "lastname", "company": "company", "phone": "phone"} {
		if v := in.String(key); v != "" {
			props[prop] = v
		}
	}

	req, err := c.hubspotRequest(http.MethodPost, "/crm/v3/objects/contacts", nil, map[string]any{"properties": props})
	if err != nil {
		return Failed("Unexpected error", err.Error(), map[string]any{"crm": crm})
	}
	payload, failed := c.do(ctx, req, crm, http.StatusCreated)
	if failed != nil {
		return failed
	}
	return success(crm, props, map[string]any{"contact_id": payload["id"]})
}

// Zendesk

func (c *CRMClient) zendeskConfigured() bool {
	z := c.Config.Zendesk
	return z.Subdomain != "" && z.Email != "" && z.Token != ""
}

func (c *CRMClient) zendeskAuth(req *http.Request) {
	req.SetBasicAuth(c.Config.Zendesk.Email+"/token", c.Config.Zendesk.Token)
}

func (c *CRMClient) getZendeskTickets(ctx context.Context, in Input) Result {
	const crm = "Zendesk"
	if !c.zendeskConfigured() {
		return Failed("Zendesk authentication required", "Please configure ZENDESK_SUBDOMAIN, ZENDESK_EMAIL and ZENDESK_TOKEN", map[string]any{"crm": crm})
	}

	query := url.Values{"per_page": {strconv.Itoa(in.Int("limit", 10))}}
	if status := in.String("status"); status != "" {
		query.Set("status", status)
	}
	req, err := newJSONRequest(http.MethodGet, strings.TrimRight(c.Config.Zendesk.BaseURL, "/")+"/tickets.json?"+query.Encode(), nil)
	if err != nil {
		return Failed("Unexpected error", err.Error(), map[string]any{"crm": crm})
	}
	c.zendeskAuth(req)

	payload, failed := c.do(ctx, req, crm, http.StatusOK)
	if failed != nil {
		return failed
	}
	tickets, _ := payload["tickets"].([]any)
	if tickets == nil {
		tickets = []any{}
	}
	return success(crm, tickets, map[string]any{"count": payload["count"]})
}

func (c *CRMClient) createZendeskTicket(ctx context.Context, in Input) Result {
	const crm = "Zendesk"
	if !c.zendeskConfigured() {
		return Failed("Zendesk authentication required", "Please configure ZENDESK_SUBDOMAIN, ZENDESK_EMAIL and ZENDESK_TOKEN", map[string]any{"crm": crm})
	}

	priority := in.String("priority")
	if priority == "" {
		priority = "normal"
	}
	requester := map[string]any{"email": in.String("requester_email")}
	if name := in.String("requester_name"); name != "" {
		requester["name"] = name
	}
	ticket := map[string]any{
		"subject":   in.String("subject"),
		"comment":   map[string]any{"body": in.String("description")},
		"priority":  priority,
		"requester": requester,
	}

	req, err := newJSONRequest(http.MethodPost, strings.TrimRight(c.Config.Zendesk.BaseURL, "/")+"/tickets.json", map[string]any{"ticket": ticket})
	if err != nil {
		return Failed("Unexpected error", err.Error(), map[string]any{"crm": crm})
	}
	c.zendeskAuth(req)

	payload, failed := c.do(ctx, req, crm, http.StatusCreated)
	if failed != nil {
		return failed
	}
	created, _ := payload["ticket"].(map[string]any)
	return success(crm, created, nil)
}

// TestConnection probes one CRM with a minimal read.
func (c *CRMClient) TestConnection(ctx context.Context, crmType string) Result {
	var res Result
	switch strings.ToLower(crmType) {
	case "salesforce":
		res = c.getSalesforceContacts(ctx, Input{"limit": 1})
	case "hubspot":
		res = c.getHubSpotContacts(ctx, Input{"limit": 1})
	case "zendesk":
		res = c.getZendeskTickets(ctx, Input{"limit": 1})
	default:
		return Failed("Unsupported CRM type", crmType, nil)
	}
	if res["status"] == "success" {
		return Result{"status": "success", "crm": res["crm"], "message": "connection ok"}
	}
	return res
}

// Configured reports which CRMs carry credentials.
func (c *CRMClient) Configured() map[string]bool {
	return map[string]bool{
		"salesforce": c.Config.Salesforce.AccessToken != "",
		"hubspot":    c.hubspotConfigured(),
		"zendesk":    c.zendeskConfigured(),
	}
}
