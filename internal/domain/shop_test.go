package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShopDomain(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare store name gets platform suffix",
			input: "acme-store",
			want:  "acme-store.example-platform.com",
		},
		{
			name:  "full domain passes through",
			input: "acme-store.example-platform.com",
			want:  "acme-store.example-platform.com",
		},
		{
			name:  "uppercase is lowered",
			input: "ACME-Store.Example-Platform.COM",
			want:  "acme-store.example-platform.com",
		},
		{
			name:  "https scheme stripped",
			input: "https://acme-store.example-platform.com",
			want:  "acme-store.example-platform.com",
		},
		{
			name:  "http scheme and path stripped",
			input: "http://acme-store.example-platform.com/admin",
			want:  "acme-store.example-platform.com",
		},
		{
			name:  "query string stripped",
			input: "acme-store.example-platform.com?param=1",
			want:  "acme-store.example-platform.com",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  acme-store  ",
			want:  "acme-store.example-platform.com",
		},
		{
			name:    "empty input rejected",
			input:   "",
			wantErr: true,
		},
		{
			name:    "scheme only rejected",
			input:   "https://",
			wantErr: true,
		},
		{
			name:    "invalid characters rejected",
			input:   "acme_store!.example-platform.com",
			wantErr: true,
		},
		{
			name:    "leading hyphen rejected",
			input:   "-acme.example-platform.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeShopDomain(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeShopDomainIdempotent(t *testing.T) {
	once, err := NormalizeShopDomain("Acme-Store")
	require.NoError(t, err)

	twice, err := NormalizeShopDomain(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestValidPermissionName(t *testing.T) {
	assert.True(t, ValidPermissionName("read_products"))
	assert.True(t, ValidPermissionName("write_orders"))
	assert.True(t, ValidPermissionName("a"))

	assert.False(t, ValidPermissionName(""))
	assert.False(t, ValidPermissionName("Read_Products"))
	assert.False(t, ValidPermissionName("read-products"))
	assert.False(t, ValidPermissionName("1read"))
	assert.False(t, ValidPermissionName("_read"))
	assert.False(t, ValidPermissionName("read products"))
}

func TestHasUsableToken(t *testing.T) {
	var nilCred *StoreCredential
	assert.False(t, nilCred.HasUsableToken())

	assert.False(t, (&StoreCredential{Status: StatusConnected}).HasUsableToken())
	assert.False(t, (&StoreCredential{AccessToken: "tok", Status: StatusDisconnected}).HasUsableToken())
	assert.True(t, (&StoreCredential{AccessToken: "tok", Status: StatusConnected}).HasUsableToken())
}
