package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the ingestion record of one uploaded PDF.
type Document struct {
	ID          string         `json:"id"`
	DocID       string         `json:"doc_id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Checksum    string         `json:"checksum"`
	SessionID   string         `json:"session_id,omitempty"`
	PageCount   int            `json:"page_count"`
	ChunkCount  int            `json:"chunk_count"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Page is the plain text of a single PDF page, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// Chunk is the atomic unit indexed and retrieved.
type Chunk struct {
	ChunkID string `json:"chunk_id"`
	DocID   string `json:"doc_id"`
	PageNum int    `json:"page_num"`
	Source  string `json:"source"`
	Text    string `json:"text"`
}
