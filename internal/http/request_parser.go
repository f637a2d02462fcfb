package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tesouraria/internal/core"
)

// maxFormBytes bounds non-upload request bodies.
const maxFormBytes = 64 << 10

// HistoryParams holds the history filters present in a request. A nil
// field means the parameter was absent and the session value stays.
type HistoryParams struct {
	Type  *core.TypeFilter
	Query *string
}

// ParseHistoryParams reads "type" and "q" from query values.
func ParseHistoryParams(query url.Values) HistoryParams {
	var p HistoryParams
	if _, ok := query["type"]; ok {
		f := core.ParseTypeFilter(query.Get("type"))
		p.Type = &f
	}
	if _, ok := query["q"]; ok {
		q := stripControl(query.Get("q"))
		p.Query = &q
	}
	return p
}

// RequestBodyParser reads a small request body that may arrive form-encoded
// or as JSON from the htmx json-enc extension.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxFormBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBytes+1))
	if p.err == nil && len(p.body) > maxFormBytes {
		p.err = errors.New("request body too large")
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.Contains(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Draft builds a transaction draft from the entry form fields. Field names
// follow the form: tipo, categoria, valor, descricao, data, responsavel.
func (p *RequestBodyParser) Draft() core.Draft {
	return core.Draft{
		Type:        p.Get("tipo"),
		Category:    p.Get("categoria"),
		Amount:      p.Get("valor"),
		Description: p.Get("descricao"),
		Date:        p.Get("data"),
		Responsible: p.Get("responsavel"),
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
	}
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Formato de requisição inválido.")
	}
	return nil
}
