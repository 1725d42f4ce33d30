package handlers

import (
	"context"
	"io"
)

const testBucket = "test-bucket"

type mockStorage struct {
	UploadProductImageFn func(productID, filename, contentType string) (string, error)
	ImportProductImageFn func(productID, imageURL string) (string, error)
	DeleteFileFn         func(objectPath string) error
	DeleteFileCalls      []string
	UploadCallCount      int
	LastUploadBody       []byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{DeleteFileCalls: []string{}}
}

func (m *mockStorage) UploadProductImage(_ context.Context, productID string, file io.Reader, filename, contentType string) (string, error) {
	m.UploadCallCount++
	m.LastUploadBody, _ = io.ReadAll(file)
	if m.UploadProductImageFn != nil {
		return m.UploadProductImageFn(productID, filename, contentType)
	}
	return "https://storage.googleapis.com/" + testBucket + "/products/" + productID + "/" + filename, nil
}

func (m *mockStorage) ImportProductImage(_ context.Context, productID, imageURL string) (string, error) {
	m.UploadCallCount++
	if m.ImportProductImageFn != nil {
		return m.ImportProductImageFn(productID, imageURL)
	}
	return "https://storage.googleapis.com/" + testBucket + "/products/" + productID + "/imported.jpg", nil
}

func (m *mockStorage) DeleteFile(_ context.Context, objectPath string) error {
	m.DeleteFileCalls = append(m.DeleteFileCalls, objectPath)
	if m.DeleteFileFn != nil {
		return m.DeleteFileFn(objectPath)
	}
	return nil
}

func (m *mockStorage) Bucket() string { return testBucket }
