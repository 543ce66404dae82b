package fortune

import "encoding/json"

// HealthSurvey 是健康问卷的常见字段，供命令行工具构造请求。
// HTTP 请求中的问卷按原样透传，不受此结构约束。
type HealthSurvey struct {
	Sleep  string `json:"sleep"`
	Mood   string `json:"mood"`
	Body   string `json:"body"`
	Stress string `json:"stress"`
}

// Request is the body of POST /api/fortune. A client-sent "today" is ignored.
// Health is kept verbatim so that any value types and extra fields reach the prompt.
type Request struct {
	BirthDate string          `json:"birthDate"`
	Health    json.RawMessage `json:"health"`
}

// Result carries the model's fortunes object verbatim, keyed by category
// (western, eastern, science) with {type, result, luck} entries.
type Result struct {
	Fortunes json.RawMessage `json:"fortunes"`
}

// Entry documents the expected shape of one category; the handler does not enforce it.
type Entry struct {
	Type   string `json:"type"`
	Result string `json:"result"`
	Luck   string `json:"luck"`
}
