package infer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func TestUnmarshalRepair(t *testing.T) {
	type out struct {
		Name string `json:"name"`
	}

	t.Run("valid json", func(t *testing.T) {
		var v out
		if err := unmarshalRepair([]byte(`{"name":"a"}`), &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if v.Name != "a" {
			t.Errorf("name=%s", v.Name)
		}
	})

	t.Run("repairs trailing comma", func(t *testing.T) {
		var v out
		if err := unmarshalRepair([]byte(`{"name":"a",}`), &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if v.Name != "a" {
			t.Errorf("name=%s", v.Name)
		}
	})

	t.Run("type mismatch is not repaired", func(t *testing.T) {
		var v out
		if err := unmarshalRepair([]byte(`{"name":1}`), &v); err == nil {
			t.Error("want error")
		}
	})
}

func TestStrictSchema(t *testing.T) {
	type arg struct {
		Required string `json:"required"`
		Optional string `json:"optional,omitempty"`
	}
	s := MustSchemaFor[arg]()
	strict := strictSchema(s)

	if strict.AdditionalProperties == nil {
		t.Error("want additionalProperties false schema")
	}
	if !slices.Contains(strict.Required, "required") || !slices.Contains(strict.Required, "optional") {
		t.Errorf("required=%v", strict.Required)
	}
	if !slices.Contains(strict.Properties["optional"].Types, "null") {
		t.Errorf("optional types=%v", strict.Properties["optional"].Types)
	}

	// The input schema must not be mutated.
	if slices.Contains(s.Required, "optional") {
		t.Error("input schema mutated")
	}
}

// chatServer returns an httptest server answering every chat completion
// with the given message content.
func chatServer(t *testing.T, content string, capture *openai.ChatCompletionNewParams) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path=%s", r.URL.Path)
		}
		if capture != nil {
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		resp := map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(srvURL string) *OpenAI {
	oc := openai.NewClient(option.WithBaseURL(srvURL), option.WithAPIKey("test"))
	return &OpenAI{Client: &oc, Model: "test-model"}
}

func TestOpenAI_Complete(t *testing.T) {
	srv := chatServer(t, "three opening questions", nil)
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), Request{
		System: "you are an assistant",
		User:   "suggest questions",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "three opening questions" {
		t.Errorf("got %q", got)
	}
}

func TestOpenAI_Invoke(t *testing.T) {
	type result struct {
		Genre string `json:"genre"`
	}

	t.Run("conforming response", func(t *testing.T) {
		srv := chatServer(t, `{"genre":"negotiation"}`, nil)
		defer srv.Close()

		var out result
		err := newTestClient(srv.URL).Invoke(context.Background(), Call{
			Name:   "classify",
			System: "classifier",
			User:   "classify this",
			Schema: MustSchemaFor[result](),
		}, &out)
		if err != nil {
			t.Fatalf("invoke: %v", err)
		}
		if out.Genre != "negotiation" {
			t.Errorf("genre=%s", out.Genre)
		}
	})

	t.Run("schema-violating response fails", func(t *testing.T) {
		srv := chatServer(t, `{"genre":123}`, nil)
		defer srv.Close()

		var out result
		err := newTestClient(srv.URL).Invoke(context.Background(), Call{
			Name:   "classify",
			User:   "classify this",
			Schema: MustSchemaFor[result](),
		}, &out)
		if err == nil {
			t.Error("want error")
		}
	})

	t.Run("non-stop finish reason fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id": "cmpl-1",
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "length",
					"message":       map[string]any{"role": "assistant", "content": "trunc"},
				}},
			})
		}))
		defer srv.Close()

		var out result
		err := newTestClient(srv.URL).Invoke(context.Background(), Call{
			Name:   "classify",
			User:   "x",
			Schema: MustSchemaFor[result](),
		}, &out)
		if err == nil || !strings.Contains(err.Error(), "finish reason") {
			t.Errorf("got %v", err)
		}
	})
}
