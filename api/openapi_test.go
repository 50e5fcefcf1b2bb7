package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)

	for _, path := range []string{
		"/api/equipment",
		"/api/equipment/{assetNumber}",
		"/api/maintenance",
		"/api/maintenance/{id}",
		"/api/maintenance/files/{filename}",
		"/api/generate-asset-number",
		"/api/server-info",
	} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
}
