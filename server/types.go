package server

type GenerateRequest struct {
	Prompt string `json:"prompt"`
	N      *int   `json:"n,omitempty"`
}

type GenerateResponse struct {
	Text         string  `json:"text"`
	Tokens       []int64 `json:"tokens"`
	PromptTokens int     `json:"prompt_tokens"`
}

type TokenizeRequest struct {
	Text string `json:"text"`
}

type TokenizeResponse struct {
	Tokens []int64 `json:"tokens"`
}

type DetokenizeRequest struct {
	Tokens []int64 `json:"tokens"`
}

type DetokenizeResponse struct {
	Text string `json:"text"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
