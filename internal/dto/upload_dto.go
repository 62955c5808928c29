package dto

// FileUpload is an in-memory file received from a client.
type FileUpload struct {
	FileName string
	Data     []byte
}

// UploadResponse describes a stored blob.
type UploadResponse struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
	FileName  string `json:"file_name"`
}
