package cacheapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Sternrassler/zato-cache-client/internal/testutil"
)

func newTestClient(t *testing.T, mock *testutil.MockCache, password string) *Client {
	t.Helper()
	return New(Config{Address: mock.Addr(), Password: password})
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("request body %q is not JSON: %v", body, err)
	}
	return out
}

func TestNew_NoPassword(t *testing.T) {
	c := New(Config{Address: "localhost:1234", Password: "", IsHTTPS: false})

	if c.Address() != "http://localhost:1234" {
		t.Errorf("Address() = %q, want %q", c.Address(), "http://localhost:1234")
	}
	if c.Username() != APIUsername {
		t.Errorf("Username() = %q, want %q", c.Username(), APIUsername)
	}
	if _, _, ok := c.Credentials(); ok {
		t.Error("Credentials() should report no auth for an empty password")
	}
	if _, isAuth := c.Session().Transport.(*basicAuthTransport); isAuth {
		t.Error("Session transport should not attach Basic Auth")
	}
}

func TestNew_WithPassword(t *testing.T) {
	c := New(Config{Address: "cache.internal:9999", Password: "secret", IsHTTPS: true})

	if c.Address() != "https://cache.internal:9999" {
		t.Errorf("Address() = %q, want %q", c.Address(), "https://cache.internal:9999")
	}

	user, pass, ok := c.Credentials()
	if !ok || user != APIUsername || pass != "secret" {
		t.Errorf("Credentials() = %q, %q, %v", user, pass, ok)
	}

	tr, isAuth := c.Session().Transport.(*basicAuthTransport)
	if !isAuth {
		t.Fatal("Session transport should attach Basic Auth")
	}
	if tr.username != APIUsername || tr.password != "secret" {
		t.Errorf("transport credentials = %q/%q", tr.username, tr.password)
	}
}

func TestFromDict(t *testing.T) {
	tests := []struct {
		name     string
		dict     map[string]any
		wantAddr string
		wantAuth bool
		wantErr  bool
	}{
		{
			name:     "plain",
			dict:     map[string]any{"address": "localhost:1234", "password": "", "is_https": false},
			wantAddr: "http://localhost:1234",
		},
		{
			name:     "https with password",
			dict:     map[string]any{"address": "cache.internal:9999", "password": "secret", "is_https": true},
			wantAddr: "https://cache.internal:9999",
			wantAuth: true,
		},
		{
			name:     "nil password",
			dict:     map[string]any{"address": "h:1", "password": nil, "is_https": "yes"},
			wantAddr: "https://h:1",
		},
		{
			name:    "bad address type",
			dict:    map[string]any{"address": 1234},
			wantErr: true,
		},
		{
			name:    "bad is_https",
			dict:    map[string]any{"address": "h:1", "is_https": "maybe"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := FromDict(tt.dict)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("FromDict() failed: %v", err)
			}
			if c.Address() != tt.wantAddr {
				t.Errorf("Address() = %q, want %q", c.Address(), tt.wantAddr)
			}
			if _, _, ok := c.Credentials(); ok != tt.wantAuth {
				t.Errorf("Credentials() ok = %v, want %v", ok, tt.wantAuth)
			}
		})
	}
}

func TestRunCommand_VerbTable(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")

	tests := []struct {
		command Command
		verb    string
	}{
		{CommandGet, http.MethodGet},
		{CommandSet, http.MethodPost},
		{CommandDelete, http.MethodDelete},
	}

	for _, tt := range tests {
		t.Run(string(tt.command), func(t *testing.T) {
			if _, err := c.RunCommand(context.Background(), CommandConfig{Command: tt.command, Key: "k"}); err != nil {
				t.Fatalf("RunCommand() failed: %v", err)
			}
			req, _ := mock.LastRequest()
			if req.Method != tt.verb {
				t.Errorf("method = %q, want %q", req.Method, tt.verb)
			}
			if req.Path != "/zato/cache/k" {
				t.Errorf("path = %q, want /zato/cache/k", req.Path)
			}
		})
	}
}

func TestRunCommand_IntKey(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")

	for _, key := range []string{"42", "042", " 42 ", "+42"} {
		resp, err := c.RunCommand(context.Background(), CommandConfig{
			Command: CommandGet,
			Key:     key,
			KeyType: KeyInt,
		})
		if err != nil {
			t.Fatalf("RunCommand(%q) failed: %v", key, err)
		}

		req, _ := mock.LastRequest()
		if req.Path != "/zato/cache/42" {
			t.Errorf("key %q: path = %q, want /zato/cache/42", key, req.Path)
		}
		if resp.Key != key {
			t.Errorf("Key = %q, want original %q", resp.Key, key)
		}
	}
}

func TestRunCommand_KeyInPath(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")

	tests := []struct {
		key  string
		want string
	}{
		{"50%", "/zato/cache/50%"},
		{"%zz", "/zato/cache/%zz"},
		{"100%%", "/zato/cache/100%%"},
		{"%41", "/zato/cache/A"},
		{"a b", "/zato/cache/a b"},
		{"ключ", "/zato/cache/ключ"},
		{"a/b", "/zato/cache/a/b"},
	}

	for _, tt := range tests {
		if _, err := c.Get(context.Background(), tt.key); err != nil {
			t.Fatalf("Get(%q) failed: %v", tt.key, err)
		}

		req, _ := mock.LastRequest()
		if req.Path != tt.want {
			t.Errorf("key %q: path = %q, want %q", tt.key, req.Path, tt.want)
		}
	}
}

func TestQuoteStrayPercent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"50%", "50%25"},
		{"%4", "%254"},
		{"%4g", "%254g"},
		{"%41%", "%41%25"},
		{"a%2Fb", "a%2Fb"},
	}

	for _, tt := range tests {
		if got := quoteStrayPercent(tt.in); got != tt.want {
			t.Errorf("quoteStrayPercent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunCommand_WideIntegers(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")

	_, err := c.RunCommand(context.Background(), CommandConfig{
		Command:   CommandSet,
		Key:       " 99999999999999999999",
		KeyType:   KeyInt,
		Value:     StringValue("-123456789012345678901234567890"),
		ValueType: ValueInt,
	})
	if err != nil {
		t.Fatalf("RunCommand() failed: %v", err)
	}

	req, _ := mock.LastRequest()
	if req.Path != "/zato/cache/99999999999999999999" {
		t.Errorf("path = %q", req.Path)
	}
	body := decodeBody(t, req.Body)
	if body["value"] != json.Number("-123456789012345678901234567890") {
		t.Errorf("body value = %#v", body["value"])
	}
}

func TestRunCommand_InvalidIntKey(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")
	_, err := c.RunCommand(context.Background(), CommandConfig{Command: CommandGet, Key: "abc", KeyType: KeyInt})
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("RunCommand() error = %v, want ErrInvalidKey", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("no request should be sent, got %d", mock.RequestCount())
	}
}

func TestRunCommand_ValueCoercion(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")

	tests := []struct {
		name      string
		value     string
		valueType ValueType
		want      any
	}{
		{"int", "123", ValueInt, json.Number("123")},
		{"bool true", "true", ValueBool, true},
		{"bool yes", "Yes", ValueBool, true},
		{"bool off", "off", ValueBool, false},
		{"string", "123", ValueString, "123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.RunCommand(context.Background(), CommandConfig{
				Command:   CommandSet,
				Key:       "k",
				Value:     StringValue(tt.value),
				ValueType: tt.valueType,
			})
			if err != nil {
				t.Fatalf("RunCommand() failed: %v", err)
			}

			req, _ := mock.LastRequest()
			body := decodeBody(t, req.Body)
			if body["value"] != tt.want {
				t.Errorf("body value = %#v, want %#v", body["value"], tt.want)
			}
			if body["return_prev"] != true {
				t.Errorf("body return_prev = %#v, want true", body["return_prev"])
			}
		})
	}
}

func TestRunCommand_NoValueOmitsField(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")
	if _, err := c.RunCommand(context.Background(), CommandConfig{Command: CommandGet, Key: "k", ValueType: ValueInt}); err != nil {
		t.Fatalf("RunCommand() failed: %v", err)
	}

	req, _ := mock.LastRequest()
	body := decodeBody(t, req.Body)
	if _, ok := body["value"]; ok {
		t.Errorf("body should not contain value: %s", req.Body)
	}
	if len(body) != 1 {
		t.Errorf("body = %s, want only return_prev", req.Body)
	}
}

func TestRunCommand_InvalidValue(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")

	for _, vt := range []ValueType{ValueInt, ValueBool} {
		_, err := c.RunCommand(context.Background(), CommandConfig{
			Command:   CommandSet,
			Key:       "k",
			Value:     StringValue("nope"),
			ValueType: vt,
		})
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("%s: error = %v, want ErrInvalidValue", vt, err)
		}
	}
}

func TestRunCommand_GetWithValue(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	mock.SetResponse("/zato/cache/foo", testutil.NewJSONResponse(`{"value": "bar"}`))

	c := newTestClient(t, mock, "")
	resp, err := c.RunCommand(context.Background(), CommandConfig{Command: CommandGet, Key: "foo", KeyType: KeyString})
	if err != nil {
		t.Fatalf("RunCommand() failed: %v", err)
	}

	if !resp.HasValue {
		t.Error("HasValue = false, want true")
	}
	if v, _ := resp.Data.String("value"); v != "bar" {
		t.Errorf("Data.value = %q, want bar", v)
	}
	if resp.Key != "foo" {
		t.Errorf("Key = %q, want foo", resp.Key)
	}
	if resp.Raw != `{"value": "bar"}` {
		t.Errorf("Raw = %q", resp.Raw)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestRunCommand_DeleteMissing(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	mock.SetResponse("DELETE /zato/cache/missing", testutil.NewJSONResponse(`{}`))

	c := newTestClient(t, mock, "")
	resp, err := c.RunCommand(context.Background(), CommandConfig{Command: CommandDelete, Key: "missing"})
	if err != nil {
		t.Fatalf("RunCommand() failed: %v", err)
	}
	if resp.HasValue {
		t.Error("HasValue = true, want false")
	}
}

func TestRunCommand_HasValueNull(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	mock.SetResponse("/zato/cache/n", testutil.NewJSONResponse(`{"value": null}`))

	c := newTestClient(t, mock, "")
	resp, err := c.Get(context.Background(), "n")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !resp.HasValue {
		t.Error("HasValue should be true for a null value")
	}
	if v, ok := resp.Value(); !ok || v != nil {
		t.Errorf("Value() = %#v, %v; want nil, true", v, ok)
	}
}

func TestRunCommand_NotFoundIsNotAnError(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	mock.SetResponse("/zato/cache/gone", testutil.NewNotFoundResponse())

	c := newTestClient(t, mock, "")
	resp, err := c.Get(context.Background(), "gone")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound || resp.HasValue {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRunCommand_MalformedJSON(t *testing.T) {
	tests := []struct {
		name      string
		resp      testutil.MockResponse
		wantClass ErrorClass
	}{
		{"200 not json", testutil.NewJSONResponse(`not json`), ErrorClassParse},
		{"200 json array", testutil.NewJSONResponse(`[1, 2]`), ErrorClassParse},
		{"200 json null", testutil.NewJSONResponse(`null`), ErrorClassParse},
		{"500 plain text", testutil.NewServerErrorResponse(), ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCache()
			defer mock.Close()
			mock.SetResponse("/zato/cache/k", tt.resp)

			c := newTestClient(t, mock, "")
			_, err := c.Get(context.Background(), "k")

			if !errors.Is(err, ErrInvalidResponse) {
				t.Fatalf("error = %v, want ErrInvalidResponse", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError", err)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
			if apiErr.Body != tt.resp.Body {
				t.Errorf("Body = %q, want %q", apiErr.Body, tt.resp.Body)
			}
		})
	}
}

func TestRunCommand_UnknownCommand(t *testing.T) {
	c := New(Config{Address: "localhost:1"})
	_, err := c.RunCommand(context.Background(), CommandConfig{Command: "flush", Key: "k"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("error = %v, want ErrUnknownCommand", err)
	}
}

func TestRunCommand_BasicAuth(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "secret")
	if _, err := c.Get(context.Background(), "k"); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	req, _ := mock.LastRequest()
	if !req.HasAuth || req.Username != APIUsername || req.Password != "secret" {
		t.Errorf("auth = %v %q/%q", req.HasAuth, req.Username, req.Password)
	}
}

func TestRunCommand_NoAuth(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")
	if _, err := c.Get(context.Background(), "k"); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	req, _ := mock.LastRequest()
	if req.HasAuth {
		t.Error("request should not carry Basic Auth")
	}
}

func TestRunCommand_TransportError(t *testing.T) {
	mock := testutil.NewMockCache()
	addr := mock.Addr()
	mock.Close()

	c := New(Config{Address: addr})
	_, err := c.Get(context.Background(), "k")
	if err == nil {
		t.Fatal("Expected transport error")
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("single-attempt client should not report retry exhaustion")
	}
}

func TestSet_RawValue(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	mock.SetResponse("POST /zato/cache/obj", testutil.NewJSONResponse(`{"prev_value": 1}`))

	c := newTestClient(t, mock, "")
	resp, err := c.Set(context.Background(), "obj", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	req, _ := mock.LastRequest()
	body := decodeBody(t, req.Body)
	obj, ok := body["value"].(map[string]any)
	if !ok || obj["a"] != json.Number("1") {
		t.Errorf("body value = %#v", body["value"])
	}

	if prev, ok := resp.PrevValue(); !ok || prev != json.Number("1") {
		t.Errorf("PrevValue() = %#v, %v", prev, ok)
	}
	if resp.HasValue {
		t.Error("HasValue should be false without a value field")
	}
}

func TestDelete(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()

	c := newTestClient(t, mock, "")
	if _, err := c.Delete(context.Background(), "k"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	req, _ := mock.LastRequest()
	if req.Method != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", req.Method)
	}
}
