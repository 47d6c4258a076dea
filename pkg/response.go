package pkg

// APIResponse represents the structure of a standard API response.
type APIResponse struct {
	Data interface{} `json:"data"`
}
