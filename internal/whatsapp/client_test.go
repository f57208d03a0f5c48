package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waflow/waflow/internal/model"
)

func testClient(t *testing.T, handler http.Handler) (*Client, Credentials) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{BaseURL: server.URL, APIVersion: "v19.0"}, nil, zerolog.Nop())
	creds := Credentials{
		AccessToken:       "test-token",
		PhoneNumberID:     "555000111",
		BusinessAccountID: "999888777",
	}
	return client, creds
}

func TestSendTemplateMessagePayload(t *testing.T) {
	var captured map[string]interface{}
	client, creds := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/555000111/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		fmt.Fprint(w, `{"messages":[{"id":"wamid.ABC123"}]}`)
	}))

	analysis := AnalyzeTemplate("order_shipped", "en_US", model.TemplateComponents{
		{Type: "BODY", Text: "Hi {{1}}, your order {{2}} shipped"},
	})

	resp, err := client.SendTemplateMessage(context.Background(), creds, TemplateSendRequest{
		PhoneNumber:    "+1 (555) 123-4567",
		TemplateName:   "order_shipped",
		LanguageCode:   "en_US",
		BodyParameters: []string{"Alice", "A100"},
		Analysis:       analysis,
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC123", resp.MessageID)

	assert.Equal(t, "whatsapp", captured["messaging_product"])
	assert.Equal(t, "15551234567", captured["to"])
	assert.Equal(t, "template", captured["type"])

	template := captured["template"].(map[string]interface{})
	assert.Equal(t, "order_shipped", template["name"])
	assert.Equal(t, "en_US", template["language"].(map[string]interface{})["code"])

	components := template["components"].([]interface{})
	require.Len(t, components, 1)
	body := components[0].(map[string]interface{})
	assert.Equal(t, "body", body["type"])
	params := body["parameters"].([]interface{})
	require.Len(t, params, 2)
	assert.Equal(t, "Alice", params[0].(map[string]interface{})["text"])
	assert.Equal(t, "A100", params[1].(map[string]interface{})["text"])
}

func TestSendTemplateMessageMediaHeader(t *testing.T) {
	var captured map[string]interface{}
	client, creds := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		fmt.Fprint(w, `{"messages":[{"id":"wamid.XYZ"}]}`)
	}))

	analysis := AnalyzeTemplate("promo", "en_US", model.TemplateComponents{
		{Type: "HEADER", Format: "IMAGE"},
		{Type: "BODY", Text: "Big sale"},
	})

	_, err := client.SendTemplateMessage(context.Background(), creds, TemplateSendRequest{
		PhoneNumber:  "15551234567",
		TemplateName: "promo",
		HeaderValue:  "https://drive.google.com/file/d/FILE42/view",
		Analysis:     analysis,
	})
	require.NoError(t, err)

	components := captured["template"].(map[string]interface{})["components"].([]interface{})
	require.Len(t, components, 1)
	header := components[0].(map[string]interface{})
	assert.Equal(t, "header", header["type"])
	param := header["parameters"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "image", param["type"])
	assert.Equal(t,
		"https://drive.google.com/uc?export=download&id=FILE42",
		param["image"].(map[string]interface{})["link"])
}

func TestSendTemplateMessageLocationHeaderFailsLocally(t *testing.T) {
	called := false
	client, creds := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		fmt.Fprint(w, `{"messages":[{"id":"wamid.NEVER"}]}`)
	}))

	analysis := AnalyzeTemplate("store_finder", "en_US", model.TemplateComponents{
		{Type: "HEADER", Format: "LOCATION"},
		{Type: "BODY", Text: "Visit us"},
	})

	_, err := client.SendTemplateMessage(context.Background(), creds, TemplateSendRequest{
		PhoneNumber:  "15551234567",
		TemplateName: "store_finder",
		Analysis:     analysis,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location header")
	assert.False(t, called, "a location template must not reach the provider")
}

func TestSendTemplateMessageProviderError(t *testing.T) {
	client, creds := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":131026,"message":"Receiver is incapable of receiving this message"}}`)
	}))

	_, err := client.SendTemplateMessage(context.Background(), creds, TemplateSendRequest{
		PhoneNumber:  "15551234567",
		TemplateName: "promo",
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 131026, apiErr.Code)
	assert.Contains(t, apiErr.Message, "incapable")
}

func TestSendTextMessage(t *testing.T) {
	var captured map[string]interface{}
	client, creds := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		fmt.Fprint(w, `{"messages":[{"id":"wamid.TXT1"}]}`)
	}))

	resp, err := client.SendTextMessage(context.Background(), creds, "+1 555 123 4567", "thanks for reaching out")
	require.NoError(t, err)
	assert.Equal(t, "wamid.TXT1", resp.MessageID)

	assert.Equal(t, "text", captured["type"])
	assert.Equal(t, "15551234567", captured["to"])
	assert.Equal(t, "thanks for reaching out", captured["text"].(map[string]interface{})["body"])
}

func TestFetchAllTemplatesPagination(t *testing.T) {
	var server *httptest.Server
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v19.0/999888777/message_templates", r.URL.Path)
		switch calls {
		case 1:
			next := server.URL + "/v19.0/999888777/message_templates?after=CURSOR&limit=100"
			fmt.Fprintf(w, `{"data":[{"name":"welcome","language":"en_US","status":"APPROVED"}],"paging":{"next":%q}}`, next)
		default:
			assert.Equal(t, "CURSOR", r.URL.Query().Get("after"))
			fmt.Fprint(w, `{"data":[{"name":"order_shipped","language":"en_US","status":"PENDING"}]}`)
		}
	})
	server = httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{BaseURL: server.URL}, nil, zerolog.Nop())
	creds := Credentials{AccessToken: "t", BusinessAccountID: "999888777"}

	templates, err := client.FetchAllTemplates(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, templates, 2)
	assert.Equal(t, "welcome", templates[0].Name)
	assert.Equal(t, "order_shipped", templates[1].Name)
}

func TestFetchTemplateDetailsNotFound(t *testing.T) {
	client, creds := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))

	_, err := client.FetchTemplateDetails(context.Background(), creds, "missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestFetchTemplateDetailsNameMismatch(t *testing.T) {
	client, creds := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"name":"welcome_v2","language":"en_US"}]}`)
	}))

	_, err := client.FetchTemplateDetails(context.Background(), creds, "welcome")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}
