package models

import "errors"

var (
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrUnsupportedFile   = errors.New("unsupported file format")
	ErrEmbeddingMismatch = errors.New("embedding model does not match the index")
	ErrNoDocuments       = errors.New("no documents found")
)
