package lookup

// AppendRequest records a proxied lookup.
type AppendRequest struct {
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
	APIType   string `json:"api_type" validate:"required,max=64"`
	InputData string `json:"input_data"`
	Result    string `json:"result"`
}

type ActivityResponse struct {
	AccountID int64 `json:"account_id"`
	Days      int   `json:"days"`
	Lookups   int64 `json:"lookups"`
}

type TotalResponse struct {
	Lookups int64 `json:"lookups"`
}
