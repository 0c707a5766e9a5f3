package models

// RAGRequest carries the query used in the RAG pipeline
type RAGRequest struct {
	Query string `json:"query" binding:"required"`
}

// RAGUsedContext is a catalog item the answer was grounded on
type RAGUsedContext struct {
	ImageURL    string   `json:"image_url"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
}

// RAGResponse is returned by the RAG endpoint
type RAGResponse struct {
	RequestID   string           `json:"request_id"`
	Answer      string           `json:"answer"`
	UsedContext []RAGUsedContext `json:"used_context"`
}

// CatalogItem is a product document stored in the vector index
type CatalogItem struct {
	ID          string   `json:"parent_asin"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Features    []string `json:"features,omitempty"`
	ImageURL    string   `json:"image_url"`
	Price       *float64 `json:"price,omitempty"`
	Rating      float64  `json:"average_rating,omitempty"`
}
