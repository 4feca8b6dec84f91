package models

// Response is the common API response envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RuntimeInfo tells the UI shell which base URLs the core bound to.
type RuntimeInfo struct {
	HTTPBaseURL string `json:"http_base_url"`
	WSBaseURL   string `json:"ws_base_url"`
	Port        int    `json:"port"`
}

// CardListResponse is the ranked card list returned to the UI.
type CardListResponse struct {
	Open  []Card `json:"open"`
	Done  []Card `json:"done"`
	Total int    `json:"total"`
}
