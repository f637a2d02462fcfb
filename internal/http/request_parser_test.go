package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseHistoryParams(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantType  string
		wantQuery string
	}{
		{"absent", url.Values{}, "", ""},
		{"type only", url.Values{"type": {"entrada"}}, "income", ""},
		{"unknown type means all", url.Values{"type": {"xyz"}}, "all", ""},
		{"query only", url.Values{"q": {"luz\x00"}}, "", "luz"},
		{"query keeps spaces", url.Values{"q": {" luz "}}, "", " luz "},
		{"both", url.Values{"type": {"saida"}, "q": {"aluguel"}}, "expense", "aluguel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseHistoryParams(tt.query)

			if tt.wantType == "" {
				if p.Type != nil {
					t.Errorf("Type = %v, want nil", *p.Type)
				}
			} else if p.Type == nil || string(*p.Type) != tt.wantType {
				t.Errorf("Type = %v, want %s", p.Type, tt.wantType)
			}

			if tt.wantQuery == "" {
				if _, present := tt.query["q"]; !present && p.Query != nil {
					t.Errorf("Query = %q, want nil", *p.Query)
				}
			} else if p.Query == nil || *p.Query != tt.wantQuery {
				t.Errorf("Query = %v, want %q", p.Query, tt.wantQuery)
			}
		})
	}
}

func TestRequestBodyParser_Draft(t *testing.T) {
	body := "tipo=entrada&categoria=dizimo&valor=150%2C00&descricao=D%C3%ADzimo&data=2024-03-10&responsavel=+Jo%C3%A3o+"
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	d := parser.Draft()
	if d.Type != "entrada" || d.Category != "dizimo" || d.Amount != "150,00" {
		t.Errorf("Draft() = %+v", d)
	}
	if d.Description != "Dízimo" || d.Date != "2024-03-10" || d.Responsible != "João" {
		t.Errorf("Draft() = %+v", d)
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := strings.Repeat("a", maxFormBytes+10)
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))

	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}

	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}

	if name := parser.Get("name"); name != "test" {
		t.Errorf("Get('name') = %q, want 'test'", name)
	}

	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&value=100"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}

	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}

	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestParseFormOrFail(t *testing.T) {
	// Valid form request
	body := "field=value"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	result := ParseFormOrFail(req)
	if result != nil {
		t.Error("Expected nil for valid form, got error response")
	}

	// Verify form was parsed
	if req.Form.Get("field") != "value" {
		t.Error("Form was not parsed correctly")
	}
}
