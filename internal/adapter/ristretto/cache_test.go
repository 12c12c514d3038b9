package ristretto_test

import (
	"testing"

	"github.com/Strob0t/TenantCMS/internal/adapter/ristretto"
	"github.com/Strob0t/TenantCMS/internal/config"
	"github.com/Strob0t/TenantCMS/internal/port/cache/cachetest"
)

func TestRistrettoCompliance(t *testing.T) {
	c, err := ristretto.New(config.Cache{L1MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	cachetest.RunComplianceTests(t, c, c.Wait)
}
