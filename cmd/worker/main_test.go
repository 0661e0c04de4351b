package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/reseller/internal/app"
	_ "github.com/odyssey-erp/reseller/testing"
)

func TestMainReturnsInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
