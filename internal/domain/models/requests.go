package models

// Request bodies and query bindings for the HTTP API.

type SubmitJobRequest struct {
	Addresses []string `json:"addresses" validate:"required,min=1,dive,required,evmaddr"`
	Chain     string   `json:"chain" default:"eth" validate:"oneof=eth base arbitrum optimism polygon bsc"`
}

type VerifyRequest struct {
	Address string `json:"address" validate:"required,evmaddr"`
	Chain   string `json:"chain" default:"eth" validate:"oneof=eth base arbitrum optimism polygon bsc"`
}

type JobResultsRequest struct {
	ID     string `param:"id" validate:"required,uuid"`
	Offset int    `query:"offset" default:"0" validate:"gte=0"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type ExportRequest struct {
	ID     string `param:"id" validate:"required,uuid"`
	Format string `query:"format" default:"csv" validate:"oneof=csv tsv"`
}

type CreateKeyRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

// SubmitJobResponse is returned synchronously by job submission.
type SubmitJobResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Total  int       `json:"total"`
}

// APIKey is the stored metadata for an issued key.
type APIKey struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	CreditsUsed int64  `json:"credits_used"`
}
