package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animerec/internal/config"
)

func qdrantAppConfig(apiKeyEnv string) *config.AppConfig {
	return &config.AppConfig{
		VectorStore: config.VectorStoreConfig{
			Type: "qdrant",
			Qdrant: &config.QdrantConfig{
				URL:        "http://localhost:6333",
				APIKeyEnv:  apiKeyEnv,
				Collection: "anime",
			},
		},
	}
}

func TestBuildStore_QdrantMissingCredentialFails(t *testing.T) {
	t.Setenv("ANIMEREC_SERVE_QDRANT_KEY", "")
	_, err := buildStore(qdrantAppConfig("ANIMEREC_SERVE_QDRANT_KEY"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingCredential)
}

func TestBuildStore_QdrantWithCredential(t *testing.T) {
	t.Setenv("ANIMEREC_SERVE_QDRANT_KEY", "secret")
	store, err := buildStore(qdrantAppConfig("ANIMEREC_SERVE_QDRANT_KEY"))
	require.NoError(t, err)
	assert.NotNil(t, store)
}
