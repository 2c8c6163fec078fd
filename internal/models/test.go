package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ID is a backend identifier. The backend is not consistent about
// emitting ids as strings or numbers, so both are accepted.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

type TestKind string

const (
	TestKindMMSE             TestKind = "mmse"
	TestKindMoCA             TestKind = "moca"
	TestKindACEIII           TestKind = "ace_iii"
	TestKindCDR              TestKind = "cdr"
	TestKindImageDescription TestKind = "image_description"
	TestKindOther            TestKind = "other"
)

type Test struct {
	ID               ID               `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	IsActive         bool             `json:"is_active"`
	TestSpecificInfo TestSpecificInfo `json:"test_specific_info"`
}

// TestSpecificInfo is the free-form configuration bag attached to a test.
// Only the keys the runner understands are decoded; the raw document is
// kept for export.
type TestSpecificInfo struct {
	Raw json.RawMessage `json:"-"`

	Translations    map[string]TranslationOverlay `json:"translations,omitempty"`
	AudioMaxSeconds int                           `json:"audio_max_seconds,omitempty"`
	BaseLocale      string                        `json:"base_locale,omitempty"`
}

func (t *TestSpecificInfo) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = TestSpecificInfo{}
		return nil
	}
	// Some deployments store the bag as a JSON string.
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return err
		}
		if strings.TrimSpace(inner) == "" {
			*t = TestSpecificInfo{}
			return nil
		}
		trimmed = []byte(inner)
	}
	type plain TestSpecificInfo
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*t = TestSpecificInfo(p)
	t.Raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

func (t TestSpecificInfo) MarshalJSON() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}
	type plain TestSpecificInfo
	return json.Marshal(plain(t))
}

// TranslationOverlay holds per-locale replacements, addressed by section
// and question index.
type TranslationOverlay struct {
	Title    string               `json:"title,omitempty"`
	Sections []SectionTranslation `json:"sections,omitempty"`
}

type SectionTranslation struct {
	Title     string                `json:"title,omitempty"`
	Text      string                `json:"text,omitempty"`
	Config    map[string]any        `json:"config,omitempty"`
	Questions []QuestionTranslation `json:"questions,omitempty"`
}

type QuestionTranslation struct {
	Title  string         `json:"title,omitempty"`
	Text   string         `json:"text,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

type Section struct {
	ID          ID             `json:"id"`
	TestID      ID             `json:"test_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	OrderIndex  int            `json:"order_index"`
	Config      map[string]any `json:"config,omitempty"`
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
)

type Media struct {
	ID   ID        `json:"id"`
	Type MediaType `json:"type"`
	URL  string    `json:"url,omitempty"`
}

type Option struct {
	ID     ID     `json:"id"`
	Text   string `json:"text"`
	Label  string `json:"label,omitempty"`
	Media  *Media `json:"media,omitempty"`
	Config Config `json:"config,omitempty"`
}

// DisplayLabel prefers the explicit label over the option text.
func (o Option) DisplayLabel() string {
	if o.Label != "" {
		return o.Label
	}
	return o.Text
}

// FallbackMediaID is the config.mediaId reference used when the option
// carries no attached media.
func (o Option) FallbackMediaID() ID {
	return ID(o.Config.String("mediaId"))
}

type Question struct {
	ID         ID           `json:"id"`
	SectionID  ID           `json:"section_id"`
	Type       QuestionType `json:"type"`
	Title      string       `json:"title"`
	Text       string       `json:"text"`
	OrderIndex int          `json:"order_index"`
	Config     Config       `json:"config,omitempty"`
	Media      []Media      `json:"media,omitempty"`
	Options    []Option     `json:"options,omitempty"`
}

// DisplayType is config.frontend_type when present, the backend type otherwise.
func (q Question) DisplayType() QuestionType {
	if ft := q.Config.String("frontend_type"); ft != "" {
		return QuestionType(ft)
	}
	return q.Type
}

// Config is the type-specific parameter bag of a question or option.
type Config map[string]any

func (c Config) String(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func (c Config) Int(key string, def int) int {
	v, ok := c[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

func (c Config) Bool(key string) bool {
	switch t := c[key].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

// Strings reads a list of strings. A comma separated string is accepted
// for older content.
func (c Config) Strings(key string) []string {
	v, ok := c[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case float64:
				out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
			case map[string]any:
				if label, ok := s["label"].(string); ok {
					out = append(out, label)
				} else if text, ok := s["text"].(string); ok {
					out = append(out, text)
				}
			}
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Objects reads a list of JSON objects.
func (c Config) Objects(key string) []map[string]any {
	list, ok := c[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Merge returns a shallow copy of c with overlay keys replacing base keys.
func (c Config) Merge(overlay map[string]any) Config {
	out := make(Config, len(c)+len(overlay))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
