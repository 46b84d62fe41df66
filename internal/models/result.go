package models

// Upload status values returned by the backend
const (
	UploadStatusSuccess = "success"
	UploadStatusError   = "error"
)

// UploadResult is the JSON body of a 2xx response from the upload endpoint.
// A 2xx with Status "error" means the document was accepted but no events
// were found in it.
type UploadResult struct {
	Status  string `json:"status"`
	Count   int    `json:"count,omitempty"`
	User    string `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

// NoEvents reports whether the backend processed the document but created nothing.
func (r UploadResult) NoEvents() bool {
	return r.Status == UploadStatusError
}

// LoginURLResponse is the body of the sign-in URL endpoint.
type LoginURLResponse struct {
	URL string `json:"url"`
}
