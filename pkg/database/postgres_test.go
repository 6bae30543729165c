package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigTranslatesDriverErrors(t *testing.T) {
	cfg := Config()

	// unique-violation handling in the repositories matches on
	// gorm.ErrDuplicatedKey, which only surfaces with translation on
	require.True(t, cfg.TranslateError)
	require.NotNil(t, cfg.Logger)
}
