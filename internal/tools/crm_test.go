package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rahul/workbench/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestCRMToolName(t *testing.T) {
	require.Equal(t, "get_salesforce_contacts", CRMToolName("salesforce", "read"))
	require.Equal(t, "create_zendesk_ticket", CRMToolName("Zendesk", "create"))
	require.Equal(t, "get_acme_records", CRMToolName("acme", "read"))
	require.Equal(t, "create_acme_record", CRMToolName("acme", "create"))
	require.Equal(t, "get_hubspot_contacts", CRMToolName("hubspot", " GET "))
	require.Equal(t, "update_hubspot_records", CRMToolName("hubspot", "Update"))

	require.Equal(t, CRMRead, CRMOperation(""))
	require.Equal(t, CRMCreate, CRMOperation("Create"))
	require.Equal(t, "update", CRMOperation("update"))
}

func crmTools(c *CRMClient) map[string]Tool {
	out := map[string]Tool{}
	for _, tool := range c.Tools() {
		out[tool.Name()] = tool
	}
	return out
}

func TestCRM_MissingCredentials(t *testing.T) {
	client := NewCRMClient(config.CRMConfig{})
	for name, tool := range crmTools(client) {
		res, err := tool.Execute(context.Background(), Input{})
		require.NoError(t, err, name)
		require.Equal(t, "failed", res["status"], name)
		require.Contains(t, res["error"], "authentication required", name)
	}
	require.Equal(t, map[string]bool{"salesforce": false, "hubspot": false, "zendesk": false}, client.Configured())
}

func TestCRM_HubSpotContacts(t *testing.T) {
	var gotPath, gotAuth, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotLimit = r.URL.Query().Get("limit")
		json.NewEncoder(w).Encode(map[string]any{"results": []any{map[string]any{"id": "1"}}})
	}))
	defer srv.Close()

	client := NewCRMClient(config.CRMConfig{HubSpot: config.HubSpotConfig{BaseURL: srv.URL, AccessToken: "tok"}})
	res, err := crmTools(client)["get_hubspot_contacts"].Execute(context.Background(), Input{"limit": 5})
	require.NoError(t, err)
	require.Equal(t, "success", res["status"])
	require.Equal(t, 1, res["total"])
	require.Equal(t, "/crm/v3/objects/contacts", gotPath)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "5", gotLimit)
}

func TestCRM_ZendeskTicket(t *testing.T) {
	var user, pass string
	var body map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		json.NewDecoder(r.Body).Decode(&body)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"ticket": map[string]any{"id": 42.0}})
	}))
	defer srv.Close()

	client := NewCRMClient(config.CRMConfig{Zendesk: config.ZendeskConfig{
		Subdomain: "acme", Email: "ops@example.com", Token: "secret", BaseURL: srv.URL,
	}})
	res, _ := crmTools(client)["create_zendesk_ticket"].Execute(context.Background(), Input{
		"subject": "Broken", "description": "It broke", "requester_email": "x@y.com",
	})
	require.Equal(t, "success", res["status"])
	require.Equal(t, 42.0, res["data"].(map[string]any)["id"])
	require.Equal(t, "ops@example.com/token", user)
	require.Equal(t, "secret", pass)
	require.Equal(t, "normal", body["ticket"]["priority"])
}

func TestCRM_APIErrorCarriesStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"expired"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewCRMClient(config.CRMConfig{HubSpot: config.HubSpotConfig{BaseURL: srv.URL, AccessToken: "old"}})
	res := client.TestConnection(context.Background(), "hubspot")
	require.Equal(t, "failed", res["status"])
	require.Equal(t, "HubSpot API error", res["error"])
	require.Equal(t, http.StatusUnauthorized, res["status_code"])

	res = client.TestConnection(context.Background(), "acme")
	require.Equal(t, "Unsupported CRM type", res["error"])
}
